// File: waiter/waiter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Waiter/Waitable rendezvous: lets a synchronous caller join an
// asynchronous completion without deadlocking the Executor it runs
// on. Ported from original_source/Wait.h's mutex/condvar pair plus
// cooperative-pump rule for callers that are themselves executor
// workers.

package waiter

import (
	"sync"
	"time"

	"github.com/momentics/netasync/executor"
)

// Waiter binds to an Executor and arbitrates blocking waits against
// it.
type Waiter struct {
	exec executor.Executor
	mu   sync.Mutex
	cond *sync.Cond
}

// New creates a Waiter bound to exec.
func New(exec executor.Executor) *Waiter {
	w := &Waiter{exec: exec}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// NewWaitable creates a Waitable bound to this Waiter.
func (w *Waiter) NewWaitable() *Waitable {
	return &Waitable{waiter: w}
}

// Await blocks until expression reports true or the Executor is
// stopped. If the calling goroutine is itself an Executor worker,
// Await pumps one unit of work at a time instead of blocking on the
// condition variable, since blocking here would starve the very
// worker that needs to run to make expression true.
func (w *Waiter) Await(expression func() bool) {
	if w.exec.Running() {
		w.awaitCooperative(expression)
		return
	}
	w.awaitBlocking(expression)
}

func (w *Waiter) awaitCooperative(expression func() bool) {
	for {
		w.mu.Lock()
		done := expression() || w.exec.Stopped()
		w.mu.Unlock()
		if done {
			return
		}
		if !w.exec.RunOne() {
			time.Sleep(time.Microsecond)
		}
	}
}

func (w *Waiter) awaitBlocking(expression func() bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !expression() && !w.exec.Stopped() {
		w.cond.Wait()
	}
}

// broadcast wakes every goroutine blocked in awaitBlocking. Called by
// Waitable.SetReady.
func (w *Waiter) broadcast() {
	w.cond.Broadcast()
}

// Waitable is a boolean flag that transitions false->true exactly
// once per use, guarded by its Waiter's mutex/condvar.
type Waitable struct {
	waiter *Waiter
	ready  bool
}

// Wrap returns a handler that invokes handler and then atomically
// marks this Waitable ready and wakes any blocked waiters.
func Wrap[T any](wa *Waitable, handler func(T)) func(T) {
	return func(arg T) {
		handler(arg)
		wa.SetReady()
	}
}

// SetReady marks the Waitable ready and wakes blocked waiters.
func (wa *Waitable) SetReady() {
	wa.waiter.mu.Lock()
	wa.ready = true
	wa.waiter.mu.Unlock()
	wa.waiter.broadcast()
}

// SetWaiting resets the Waitable to false for reuse.
func (wa *Waitable) SetWaiting() {
	wa.waiter.mu.Lock()
	wa.ready = false
	wa.waiter.mu.Unlock()
}

// Ready reports the current state. Callers evaluating a composed
// expression must hold the owning Waiter's mutex, which Await already
// does for them.
func (wa *Waitable) Ready() bool {
	return wa.ready
}

// And composes two Waitables into a predicate suitable for Await.
func And(a, b *Waitable) func() bool {
	return func() bool { return a.Ready() && b.Ready() }
}

// Or composes two Waitables into a predicate suitable for Await.
func Or(a, b *Waitable) func() bool {
	return func() bool { return a.Ready() || b.Ready() }
}
