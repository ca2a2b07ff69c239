// File: datagram/datagram.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Length-framed asynchronous datagram I/O (C8). Ported from
// original_source/DatagramSender.h and DatagramReceiver.h's
// asyncSendTo/asyncReceiveFrom pair, substituting net.UDPConn for
// boost::asio's udp::socket.

package datagram

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/bufpool"
	"github.com/momentics/netasync/closeable"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/frame"
)

// receivePools caches one BytePool per distinct maxMessageSize+header
// width, since a Receiver reuses the same limit across many receives
// but the limit is a call parameter, not a constant.
var receivePools sync.Map // map[int]*bufpool.BytePool

func receivePoolFor(size int) *bufpool.BytePool {
	if v, ok := receivePools.Load(size); ok {
		return v.(*bufpool.BytePool)
	}
	p := bufpool.New(size)
	actual, _ := receivePools.LoadOrStore(size, p)
	return actual.(*bufpool.BytePool)
}

// Conn wraps a *net.UDPConn with the open/closed latch Closeable
// operations need.
type Conn struct {
	*net.UDPConn
	open atomic.Bool
}

// NewConn wraps c, marking it open.
func NewConn(c *net.UDPConn) *Conn {
	conn := &Conn{UDPConn: c}
	conn.open.Store(true)
	return conn
}

// Close closes the underlying socket at most once.
func (c *Conn) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	return c.UDPConn.Close()
}

// IsOpen reports whether Close has not yet run.
func (c *Conn) IsOpen() bool { return c.open.Load() }

// AsyncSendTo frames payload and transmits it as one UDP datagram to
// addr. Unlike the stream writer, there is no vectored fast path here:
// net.PacketConn.WriteTo sends exactly one buffer, so the header and
// payload are concatenated by frame.Encode before the syscall.
func AsyncSendTo(exec executor.Executor, conn *Conn, payload []byte, addr *net.UDPAddr, timeout time.Duration, handler func(err *aerr.Error)) {
	datagram := frame.Encode(payload)
	closeable.Run[struct{}](exec, conn, timeout, func(complete closeable.Complete[struct{}]) {
		go func() {
			_, err := conn.WriteToUDP(datagram, addr)
			complete(err, struct{}{})
		}()
	}, func(err *aerr.Error, _ struct{}) {
		handler(err)
	})
}

type receiveResult struct {
	payload []byte
	from    *net.UDPAddr
}

// AsyncReceiveFrom reads one datagram into a pooled buffer fixed at
// maxMessageSize+frame.HeaderSize, mirroring DatagramReceiver's fixed
// std::vector<char> buffer, and decodes its frame. Because exactly one
// recvfrom(2) yields exactly one datagram, no carry-over buffering is
// needed the way the two-phase stream read requires.
//
// The payload slice handed to handler aliases the pooled receive
// buffer and is recycled as soon as handler returns; handler must copy
// anything it needs to keep rather than retaining the slice itself.
func AsyncReceiveFrom(exec executor.Executor, conn *Conn, maxMessageSize int, timeout time.Duration, handler func(err *aerr.Error, payload []byte, from *net.UDPAddr)) {
	pool := receivePoolFor(maxMessageSize + frame.HeaderSize)
	buf := pool.Get()

	closeable.Run[receiveResult](exec, conn, timeout, func(complete closeable.Complete[receiveResult]) {
		go func() {
			n, addr, err := conn.ReadFromUDP(buf)
			res := receiveResult{from: addr}
			if n > 0 {
				res.payload = buf[:n]
			}
			complete(err, res)
		}()
	}, func(err *aerr.Error, res receiveResult) {
		defer pool.Put(buf)

		if err != nil {
			handler(err, nil, res.from)
			return
		}
		payload, _, decErr := frame.Decode(res.payload)
		if decErr != nil {
			handler(aerr.New(aerr.InvalidFrame), nil, res.from)
			return
		}
		handler(nil, payload, res.from)
	})
}
