//go:build linux

// File: vecio/vecio_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux fast path: writev(2) directly on the socket file descriptor
// via golang.org/x/sys/unix, avoiding the header/payload concatenation
// the portable path would otherwise need. Grounded in the teacher's
// internal/transport/transport_linux.go, which drives the same
// syscall family (SendmsgBuffers/RecvmsgBuffers) through a raw-conn
// callback.

package vecio

import (
	"errors"
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

var errAgain = errors.New("vecio: try again")

func writeVectored(w io.Writer, parts [][]byte) (int, error) {
	sc, ok := w.(syscall.Conn)
	if !ok {
		return portableWrite(w, parts)
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return portableWrite(w, parts)
	}

	total := totalLen(parts)
	var n int
	var writeErr error
	ctrlErr := raw.Write(func(fd uintptr) bool {
		var wn int
		wn, writeErr = unix.Writev(int(fd), parts)
		n += wn
		if writeErr == unix.EAGAIN {
			writeErr = nil
			return false // not ready, ask runtime to wait and retry
		}
		return true
	})
	if ctrlErr != nil {
		return portableWrite(w, parts)
	}
	if writeErr != nil {
		return n, writeErr
	}
	if n < total {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func portableWrite(w io.Writer, parts [][]byte) (int, error) {
	bufs := net.Buffers(append([][]byte(nil), parts...))
	n, err := bufs.WriteTo(w)
	return int(n), err
}
