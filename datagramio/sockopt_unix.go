//go:build unix

// File: datagramio/sockopt_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SO_REUSEADDR/SO_BROADCAST setup, grounded in the same
// golang.org/x/sys/unix raw-conn pattern vecio uses for Writev.

package datagramio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func setSockOpts(raw syscall.RawConn, reuseAddr, broadcast bool) error {
	var optErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		if reuseAddr {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
				optErr = err
				return
			}
		}
		if broadcast {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
				optErr = err
				return
			}
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return optErr
}
