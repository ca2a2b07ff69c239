// File: serviceserver/serviceserver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Request/response RPC server over framed TCP connections (C11).
// Ported from original_source/ServiceServer.h's advertiseService ->
// accept -> handleService chain. Uses a Replacer policy manager, so a
// second Advertise call supersedes the first's accept loop exactly as
// PendingOperationReplacer does there; the FinishedOperationNotifier
// is held for the whole accept-loop lifetime and only fires once the
// loop actually stops, mirroring the original's AcceptState lifetime.
package serviceserver

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/opmanager"
	"github.com/momentics/netasync/stream"
)

// Handler answers a single request from clientAddr with a response.
// Errors decoding the request or encoding the response cause that
// connection to be dropped silently, matching the original's
// "we don't handle anything sending-wise" comment for the send side
// and its timeout-treated-as-never-received rule for the receive
// side.
type Handler[Req, Resp any] func(clientAddr net.Addr, request Req) Resp

// Server accepts connections on bindingPort and answers each one
// with handler.
type Server[Req, Resp any] struct {
	exec           executor.Executor
	bindingPort    uint16
	maxMessageSize int
	decode         func([]byte) (Req, error)
	encode         func(Resp) ([]byte, error)

	manager *opmanager.Manager
	mu      sync.Mutex
	ln      net.Listener
	running atomic.Bool
}

// New constructs a Server bound to bindingPort once Advertise starts
// its accept loop.
func New[Req, Resp any](exec executor.Executor, bindingPort uint16, maxMessageSize int, decode func([]byte) (Req, error), encode func(Resp) ([]byte, error)) *Server[Req, Resp] {
	s := &Server[Req, Resp]{
		exec:           exec,
		bindingPort:    bindingPort,
		maxMessageSize: maxMessageSize,
		decode:         decode,
		encode:         encode,
	}
	s.manager = opmanager.New(opmanager.NewReplacerPolicy(), s.abort)
	return s
}

// Advertise starts accepting connections, calling handler for every
// successfully framed request. A second call while already advertising
// supersedes the first. receiveTimeout bounds the request read;
// sendTimeout bounds the response write.
func (s *Server[Req, Resp]) Advertise(handler Handler[Req, Resp], receiveTimeout, sendTimeout time.Duration) {
	s.manager.StartOperation(func() {
		s.advertiseOperation(handler, receiveTimeout, sendTimeout)
	})
}

// Cancel stops the accept loop. Connections already being handled run
// to completion.
func (s *Server[Req, Resp]) Cancel() {
	s.manager.CancelOperation()
}

// Addr reports the accept loop's bound address, or nil before the
// first successful Advertise and after Cancel or a superseding
// Advertise has closed the listener (until the next accept loop opens
// a new one). Useful when bindingPort is 0 and the OS assigns an
// ephemeral port.
func (s *Server[Req, Resp]) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server[Req, Resp]) abort() {
	s.running.Store(false)
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
}

func (s *Server[Req, Resp]) advertiseOperation(handler Handler[Req, Resp], receiveTimeout, sendTimeout time.Duration) {
	s.running.Store(true)
	notifier := opmanager.NewFinishedOperationNotifier(s.manager)

	s.mu.Lock()
	if s.ln == nil {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.bindingPort))
		if err != nil {
			s.mu.Unlock()
			s.running.Store(false)
			notifier.Close()
			return
		}
		s.ln = ln
	}
	ln := s.ln
	s.mu.Unlock()

	go s.acceptLoop(ln, handler, receiveTimeout, sendTimeout, notifier)
}

func (s *Server[Req, Resp]) acceptLoop(ln net.Listener, handler Handler[Req, Resp], receiveTimeout, sendTimeout time.Duration, notifier *opmanager.FinishedOperationNotifier) {
	for {
		conn, err := ln.Accept()
		if !s.running.Load() {
			if conn != nil {
				_ = conn.Close()
			}
			notifier.Close()
			return
		}
		if err != nil {
			continue
		}
		if s.manager.IsCanceled() {
			_ = conn.Close()
			continue
		}
		s.handleService(stream.NewConn(conn), handler, receiveTimeout, sendTimeout)
	}
}

func (s *Server[Req, Resp]) handleService(conn *stream.Conn, handler Handler[Req, Resp], receiveTimeout, sendTimeout time.Duration) {
	stream.AsyncRead(s.exec, conn, s.maxMessageSize, receiveTimeout, func(err *aerr.Error, payload []byte) {
		if err != nil {
			_ = conn.Close()
			return
		}

		req, decErr := s.decode(payload)
		if decErr != nil {
			_ = conn.Close()
			return
		}

		resp := handler(conn.RemoteAddr(), req)
		respBytes, encErr := s.encode(resp)
		if encErr != nil {
			_ = conn.Close()
			return
		}

		stream.AsyncWrite(s.exec, conn, respBytes, sendTimeout, func(*aerr.Error) {
			_ = conn.Close()
		})
	})
}
