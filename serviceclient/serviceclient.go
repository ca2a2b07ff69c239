// File: serviceclient/serviceclient.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Request/response RPC client over a framed TCP stream (C10). Ported
// from original_source/ServiceClient.h's asyncCallOperation ->
// connectHandler -> writeHandler chain, with the per-stage timeout
// budget carried over exactly as updateTimeout does there. Generic
// over the request/response payload types the way closeable.Run is
// generic over a result type; encode/decode are supplied once at
// construction instead of being pulled from a Message trait, since Go
// has no equivalent of the original's compile-time Message concept.
package serviceclient

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/opmanager"
	"github.com/momentics/netasync/resolver"
	"github.com/momentics/netasync/stream"
)

// Client calls a single remote endpoint, serializing concurrent calls
// behind a Queue policy manager (ordering across independent calls is
// preserved, as with the original's PendingOperationQueue).
type Client[Req, Resp any] struct {
	exec           executor.Executor
	resolver       *resolver.Resolver
	maxMessageSize int
	encode         func(Req) ([]byte, error)
	decode         func([]byte) (Resp, error)

	manager *opmanager.Manager
	mu      sync.Mutex
	conn    *stream.Conn
}

// New constructs a Client that schedules work on exec, rejecting
// frames above maxMessageSize on read, and using encode/decode to
// convert between Req/Resp and the wire payload.
func New[Req, Resp any](exec executor.Executor, maxMessageSize int, encode func(Req) ([]byte, error), decode func([]byte) (Resp, error)) *Client[Req, Resp] {
	c := &Client[Req, Resp]{
		exec:           exec,
		maxMessageSize: maxMessageSize,
		encode:         encode,
		decode:         decode,
	}
	c.resolver = resolver.New(exec)
	c.manager = opmanager.New(opmanager.NewQueuePolicy(), c.abort)
	return c
}

// Cancel aborts the in-flight call, if any, and drains queued ones
// without invoking their handlers.
func (c *Client[Req, Resp]) Cancel() {
	c.manager.CancelOperation()
}

func (c *Client[Req, Resp]) abort() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	c.resolver.Stop()
}

// AsyncCall encodes request, resolves host:port, connects, writes the
// framed request and reads the framed response, reporting whichever
// of (success, Encoding, FailedOperation, Decoding, Aborted,
// InvalidFrame) applies. A synchronous encoding failure is still
// delivered asynchronously via exec.Post, matching the original's
// context.post behavior for the same case.
func (c *Client[Req, Resp]) AsyncCall(request Req, host string, port uint16, timeout time.Duration, handler func(err *aerr.Error, response Resp)) {
	var zero Resp
	payload, err := c.encode(request)
	if err != nil {
		c.exec.Post(func() { handler(aerr.Wrap(aerr.Encoding, err), zero) })
		return
	}

	c.manager.StartOperation(func() {
		c.callOperation(payload, host, port, timeout, handler)
	})
}

func (c *Client[Req, Resp]) callOperation(payload []byte, host string, port uint16, timeout time.Duration, handler func(*aerr.Error, Resp)) {
	var zero Resp
	start := time.Now()
	notifier := opmanager.NewFinishedOperationNotifier(c.manager)

	service := strconv.Itoa(int(port))
	c.resolver.AsyncResolve(host, service, timeout, func(err *aerr.Error, endpoints []*net.TCPAddr) {
		if err != nil {
			notifier.Notify()
			handler(err, zero)
			return
		}

		remaining := timeout - time.Since(start)
		c.connectAndCall(endpoints, remaining, payload, notifier, handler)
	})
}

func (c *Client[Req, Resp]) connectAndCall(endpoints []*net.TCPAddr, remaining time.Duration, payload []byte, notifier *opmanager.FinishedOperationNotifier, handler func(*aerr.Error, Resp)) {
	var zero Resp
	if remaining < 0 {
		remaining = 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	dialStart := time.Now()
	rawConn, err := dialAny(ctx, endpoints)
	if err != nil {
		notifier.Notify()
		handler(aerr.Wrap(aerr.FailedOperation, err), zero)
		return
	}

	remaining -= time.Since(dialStart)
	if remaining < 0 {
		remaining = 0
	}

	conn := stream.NewConn(rawConn)
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	writeStart := time.Now()
	stream.AsyncWrite(c.exec, conn, payload, remaining, func(err *aerr.Error) {
		if err != nil {
			_ = conn.Close()
			notifier.Notify()
			handler(err, zero)
			return
		}

		readTimeout := remaining - time.Since(writeStart)
		if readTimeout < 0 {
			readTimeout = 0
		}

		stream.AsyncRead(c.exec, conn, c.maxMessageSize, readTimeout, func(err *aerr.Error, respBytes []byte) {
			_ = conn.Close()
			if err != nil {
				notifier.Notify()
				handler(err, zero)
				return
			}

			resp, decErr := c.decode(respBytes)
			if decErr != nil {
				notifier.Notify()
				handler(aerr.Wrap(aerr.Decoding, decErr), zero)
				return
			}

			notifier.Notify()
			handler(nil, resp)
		})
	})
}

// dialAny tries every resolved endpoint in order, returning the first
// successful connection, mirroring boost::asio::async_connect's
// endpoint-list fallback.
func dialAny(ctx context.Context, endpoints []*net.TCPAddr) (net.Conn, error) {
	var d net.Dialer
	var lastErr error
	for _, ep := range endpoints {
		conn, err := d.DialContext(ctx, "tcp", ep.String())
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &net.AddrError{Err: "no endpoints resolved", Addr: ""}
	}
	return nil, lastErr
}
