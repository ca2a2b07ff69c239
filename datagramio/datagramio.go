// File: datagramio/datagramio.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket lifecycle management sitting above datagram's framed
// send/receive (C12). Ported from original_source/DatagramSender.h
// (lazy, unbound, broadcast-enabled socket, Queue policy) and
// DatagramReceiver.h (lazy, bound, reuse_address+broadcast socket,
// Replacer policy).
package datagramio

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/datagram"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/opmanager"
)

// Sender lazily opens a broadcast-capable, unbound UDP socket on its
// first send and reuses it for subsequent sends. Concurrent sends are
// ordered behind a Queue policy manager.
type Sender struct {
	exec    executor.Executor
	manager *opmanager.Manager

	mu   sync.Mutex
	conn *datagram.Conn
}

// NewSender constructs a Sender that schedules work on exec.
func NewSender(exec executor.Executor) *Sender {
	s := &Sender{exec: exec}
	s.manager = opmanager.New(opmanager.NewQueuePolicy(), s.abort)
	return s
}

func (s *Sender) abort() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Cancel aborts the in-flight send, if any, and drains queued ones
// without invoking their handlers.
func (s *Sender) Cancel() { s.manager.CancelOperation() }

// AsyncSend frames payload and sends it to addr, opening the
// underlying socket on first use.
func (s *Sender) AsyncSend(payload []byte, addr *net.UDPAddr, timeout time.Duration, handler func(err *aerr.Error)) {
	s.manager.StartOperation(func() {
		notifier := opmanager.NewFinishedOperationNotifier(s.manager)

		conn, err := s.setupSocket()
		if err != nil {
			notifier.Notify()
			handler(aerr.Wrap(aerr.FailedOperation, err))
			return
		}

		datagram.AsyncSendTo(s.exec, conn, payload, addr, timeout, func(err *aerr.Error) {
			notifier.Notify()
			handler(err)
		})
	})
}

func (s *Sender) setupSocket() (*datagram.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && s.conn.IsOpen() {
		return s.conn, nil
	}

	raw, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, err
	}
	if rawConn, err := raw.SyscallConn(); err == nil {
		_ = setSockOpts(rawConn, false, true)
	}

	conn := datagram.NewConn(raw)
	s.conn = conn
	return conn, nil
}

// Receiver lazily opens a reuse_address+broadcast UDP socket bound to
// bindingPort on its first receive. Concurrent receives supersede one
// another under a Replacer policy, matching the original's
// PendingOperationReplacer.
type Receiver struct {
	exec           executor.Executor
	bindingPort    uint16
	maxMessageSize int
	manager        *opmanager.Manager

	mu   sync.Mutex
	conn *datagram.Conn
}

// NewReceiver constructs a Receiver bound to bindingPort once
// AsyncReceive first runs, accepting datagrams up to maxMessageSize
// bytes of payload.
func NewReceiver(exec executor.Executor, bindingPort uint16, maxMessageSize int) *Receiver {
	r := &Receiver{exec: exec, bindingPort: bindingPort, maxMessageSize: maxMessageSize}
	r.manager = opmanager.New(opmanager.NewReplacerPolicy(), r.abort)
	return r
}

func (r *Receiver) abort() {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Cancel aborts the in-flight receive, superseding or stopping it.
func (r *Receiver) Cancel() { r.manager.CancelOperation() }

// Addr reports the socket's bound local address, or nil before the
// first AsyncReceive call has opened it. Useful when bindingPort is 0
// and the OS assigns an ephemeral port.
func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// AsyncReceive waits for the next datagram, superseding any receive
// already in flight.
func (r *Receiver) AsyncReceive(timeout time.Duration, handler func(err *aerr.Error, payload []byte, from *net.UDPAddr)) {
	r.manager.StartOperation(func() {
		notifier := opmanager.NewFinishedOperationNotifier(r.manager)

		conn, err := r.setupSocket()
		if err != nil {
			notifier.Notify()
			handler(aerr.Wrap(aerr.FailedOperation, err), nil, nil)
			return
		}

		datagram.AsyncReceiveFrom(r.exec, conn, r.maxMessageSize, timeout, func(err *aerr.Error, payload []byte, from *net.UDPAddr) {
			if r.manager.IsCanceled() {
				notifier.Notify()
				return
			}
			notifier.Notify()
			handler(err, payload, from)
		})
	})
}

func (r *Receiver) setupSocket() (*datagram.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && r.conn.IsOpen() {
		return r.conn, nil
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, rc syscall.RawConn) error {
			return setSockOpts(rc, true, true)
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", r.bindingPort))
	if err != nil {
		return nil, err
	}

	conn := datagram.NewConn(pc.(*net.UDPConn))
	r.conn = conn
	return conn, nil
}
