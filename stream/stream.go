// File: stream/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Length-framed asynchronous stream I/O (C7). Ported from
// original_source/Stream.h's asyncWrite/asyncRead, generalized from
// boost::asio's streambuf-based two-phase read to a plain net.Conn and
// the frame package's fixed 4-byte header.

package stream

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/bufpool"
	"github.com/momentics/netasync/closeable"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/frame"
	"github.com/momentics/netasync/vecio"
)

// headerPool recycles the fixed frame.HeaderSize buffers every
// AsyncRead's header phase needs.
var headerPool = bufpool.New(frame.HeaderSize)

// payloadPools caches one BytePool per distinct maxMessageSize, since
// callers generally reuse the same limit across many reads on a
// Client or Server but the limit is a call parameter, not a constant.
var payloadPools sync.Map // map[int]*bufpool.BytePool

func payloadPoolFor(size int) *bufpool.BytePool {
	if v, ok := payloadPools.Load(size); ok {
		return v.(*bufpool.BytePool)
	}
	p := bufpool.New(size)
	actual, _ := payloadPools.LoadOrStore(size, p)
	return actual.(*bufpool.BytePool)
}

// Conn wraps a net.Conn with the atomic open/closed latch the
// Closeable Timed-Operation Pattern needs from a Handle. Close is
// idempotent; the underlying connection is closed at most once.
type Conn struct {
	net.Conn
	open atomic.Bool
}

// NewConn wraps c, marking it open.
func NewConn(c net.Conn) *Conn {
	conn := &Conn{Conn: c}
	conn.open.Store(true)
	return conn
}

// Close closes the underlying connection at most once.
func (c *Conn) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	return c.Conn.Close()
}

// IsOpen reports whether Close has not yet run.
func (c *Conn) IsOpen() bool { return c.open.Load() }

// AsyncWrite frames payload with a 4-byte big-endian length header and
// hands header and payload to vecio.WriteVectored as two buffers,
// reporting FailedOperation on any short write or transport error and
// Aborted if timeout elapses or conn is closed concurrently. *Conn does
// not implement syscall.Conn, so vecio takes its net.Buffers path here:
// the two buffers go out as consecutive Write calls on the wrapped
// connection, not as one writev(2).
func AsyncWrite(exec executor.Executor, conn *Conn, payload []byte, timeout time.Duration, handler func(err *aerr.Error)) {
	hdr := frame.EncodeHeader(len(payload))
	closeable.Run[struct{}](exec, conn, timeout, func(complete closeable.Complete[struct{}]) {
		go func() {
			_, err := vecio.WriteVectored(conn, [][]byte{hdr[:], payload})
			complete(err, struct{}{})
		}()
	}, func(err *aerr.Error, _ struct{}) {
		handler(err)
	})
}

// AsyncRead performs the two-phase framed read: first the 4-byte
// header under the full timeout budget, then the declared payload
// length under whatever budget remains. A zero-length frame completes
// successfully with a nil payload. A declared length exceeding
// maxMessageSize is reported as InvalidFrame without reading the body.
//
// The payload slice handed to handler is recycled into an internal
// pool as soon as handler returns; handler must copy anything it needs
// to keep rather than retaining the slice itself.
func AsyncRead(exec executor.Executor, conn *Conn, maxMessageSize int, timeout time.Duration, handler func(err *aerr.Error, payload []byte)) {
	start := time.Now()
	hdrBuf := headerPool.Get()

	closeable.Run[[]byte](exec, conn, timeout, func(complete closeable.Complete[[]byte]) {
		go func() {
			_, err := io.ReadFull(conn, hdrBuf)
			complete(err, hdrBuf)
		}()
	}, func(err *aerr.Error, hdr []byte) {
		n, decErr := frame.DecodeHeader(hdr)
		headerPool.Put(hdrBuf)

		if err != nil {
			handler(err, nil)
			return
		}
		if decErr != nil {
			handler(aerr.New(aerr.InvalidFrame), nil)
			return
		}
		if n == 0 {
			handler(nil, nil)
			return
		}
		if int(n) > maxMessageSize {
			handler(aerr.New(aerr.InvalidFrame), nil)
			return
		}

		remaining := timeout - time.Since(start)
		if remaining < 0 {
			remaining = 0
		}

		pool := payloadPoolFor(maxMessageSize)
		buf := pool.Get()
		payload := buf[:n]
		closeable.Run[[]byte](exec, conn, remaining, func(complete closeable.Complete[[]byte]) {
			go func() {
				_, err := io.ReadFull(conn, payload)
				complete(err, payload)
			}()
		}, func(err *aerr.Error, payload []byte) {
			defer pool.Put(buf)
			handler(err, payload)
		})
	})
}
