// File: frame/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Length-prefixed frame codec shared by every transport in netasync.
// A frame is a 4-byte big-endian unsigned length N followed by exactly
// N payload bytes. Frames carry no type tag and no checksum.

package frame

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed width of the length prefix, in bytes.
const HeaderSize = 4

// ErrInvalidFrame is returned when a header is unreadable or a payload
// is truncated relative to its declared length.
var ErrInvalidFrame = errors.New("invalidFrame")

// Encode prepends a 4-byte big-endian length header to payload and
// returns the resulting frame. The caller is responsible for ensuring
// len(payload) does not exceed the receiver's maxMessageSize; Encode
// itself imposes no limit since the sender's limit is its own concern.
func Encode(payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[HeaderSize:], payload)
	return out
}

// EncodeHeader returns just the 4-byte big-endian length header for n
// payload bytes, without allocating or copying the payload itself.
// Used by vectored writers that send header and payload as separate
// buffers in a single syscall.
func EncodeHeader(n int) [HeaderSize]byte {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(n))
	return hdr
}

// DecodeHeader parses the 4-byte big-endian length prefix from hdr.
func DecodeHeader(hdr []byte) (uint32, error) {
	if len(hdr) < HeaderSize {
		return 0, ErrInvalidFrame
	}
	return binary.BigEndian.Uint32(hdr[:HeaderSize]), nil
}

// Decode parses buf as a single frame, returning the payload and the
// unconsumed remainder of buf. A payload length of 0 is valid and
// yields an empty, non-nil payload slice.
func Decode(buf []byte) (payload []byte, rest []byte, err error) {
	if len(buf) < HeaderSize {
		return nil, buf, ErrInvalidFrame
	}
	n, _ := DecodeHeader(buf)
	if uint32(len(buf)-HeaderSize) < n {
		return nil, buf, ErrInvalidFrame
	}
	end := HeaderSize + int(n)
	return buf[HeaderSize:end:end], buf[end:], nil
}
