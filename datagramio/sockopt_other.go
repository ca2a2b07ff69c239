//go:build !unix

// File: datagramio/sockopt_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package datagramio

import "syscall"

func setSockOpts(raw syscall.RawConn, reuseAddr, broadcast bool) error {
	return nil
}
