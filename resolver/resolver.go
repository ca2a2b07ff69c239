// File: resolver/resolver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Closeable DNS resolution (C9). Ported from
// original_source/Resolver.h's CloseableResolver + Resolver<Protocol>,
// substituting net.DefaultResolver for boost::asio's resolver service
// and a context.CancelFunc for boost::asio's resolver::cancel.

package resolver

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/closeable"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/opmanager"
)

// Resolver serializes DNS lookups behind a Queue policy manager
// (ordering across independent resolves is preserved, mirroring
// PendingOperationQueue in the original) and supports aborting the
// in-flight lookup via Stop.
type Resolver struct {
	exec    executor.Executor
	manager *opmanager.Manager

	mu     sync.Mutex
	opened bool
	cancel context.CancelFunc
}

// New constructs a Resolver that schedules lookups on exec.
func New(exec executor.Executor) *Resolver {
	r := &Resolver{exec: exec}
	r.manager = opmanager.New(opmanager.NewQueuePolicy(), r.abort)
	return r
}

// Close implements closeable.Handle: it cancels the in-flight lookup,
// if any, and latches the resolver closed.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		return nil
	}
	r.opened = false
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

// IsOpen implements closeable.Handle.
func (r *Resolver) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened
}

func (r *Resolver) abort() { _ = r.Close() }

// AsyncResolve resolves host and service (a port number or service
// name, as accepted by net.LookupPort) to every matching TCP endpoint,
// under a deadline of timeout. Concurrent calls against the same
// Resolver are queued and dispatched one at a time.
func (r *Resolver) AsyncResolve(host, service string, timeout time.Duration, handler func(err *aerr.Error, endpoints []*net.TCPAddr)) {
	r.manager.StartOperation(func() {
		r.resolveOperation(host, service, timeout, handler)
	})
}

// Stop cancels any in-flight lookup and drains queued ones without
// invoking their handlers.
func (r *Resolver) Stop() {
	r.manager.CancelOperation()
}

func (r *Resolver) resolveOperation(host, service string, timeout time.Duration, handler func(*aerr.Error, []*net.TCPAddr)) {
	r.mu.Lock()
	r.opened = true
	r.mu.Unlock()

	notifier := opmanager.NewFinishedOperationNotifier(r.manager)

	closeable.Run[[]*net.TCPAddr](r.exec, r, timeout, func(complete closeable.Complete[[]*net.TCPAddr]) {
		ctx, cancel := context.WithCancel(context.Background())
		r.mu.Lock()
		r.cancel = cancel
		r.mu.Unlock()

		go func() {
			defer cancel()
			endpoints, err := lookupEndpoints(ctx, host, service)
			complete(err, endpoints)
		}()
	}, func(err *aerr.Error, endpoints []*net.TCPAddr) {
		notifier.Notify()
		handler(err, endpoints)
	})
}

func lookupEndpoints(ctx context.Context, host, service string) ([]*net.TCPAddr, error) {
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		return nil, err
	}

	endpoints := make([]*net.TCPAddr, 0, len(ips))
	for _, ip := range ips {
		endpoints = append(endpoints, &net.TCPAddr{IP: ip.IP, Port: port, Zone: ip.Zone})
	}
	return endpoints, nil
}
