//go:build !linux

// File: vecio/vecio_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable fallback for platforms without a dedicated writev fast
// path: net.Buffers already performs a single writev(2)-equivalent
// syscall when w exposes the right raw-conn hooks, and degrades to
// sequential Write calls otherwise.

package vecio

import (
	"io"
	"net"
)

func writeVectored(w io.Writer, parts [][]byte) (int, error) {
	bufs := net.Buffers(append([][]byte(nil), parts...))
	n, err := bufs.WriteTo(w)
	return int(n), err
}
