// File: vecio/vecio.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WriteVectored transmits parts as a single logical frame in one
// syscall where the platform supports it, so the length header and
// the payload never need to be copied into one contiguous buffer
// before hitting the wire.

package vecio

import "io"

// WriteVectored writes every slice in parts, in order, as a single
// frame. The portable path (used by every platform without a
// dedicated fast path, and by test doubles such as net.Pipe) delegates
// to net.Buffers, which itself performs a writev(2) when the
// underlying Writer exposes the necessary raw-conn hook.
func WriteVectored(w io.Writer, parts [][]byte) (int, error) {
	return writeVectored(w, parts)
}

func totalLen(parts [][]byte) int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return n
}
