// File: timer/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-shot and periodic cancellable timer (C3), sequenced through an
// Async Operation Manager with a Replacer policy: starting a new
// timeout on a Timer that already has one running cancels it first.
// Periodic drift prevention computes each deadline as
// previous + interval, never now + interval.

package timer

import (
	"sync"
	"time"

	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/opmanager"
)

// Handler is invoked on successful expiry of a one-shot or periodic
// timeout. It is never invoked after Cancel.
type Handler func()

// Timer is a cancellable, sequenced timeout source.
type Timer struct {
	exec executor.Executor
	mgr  *opmanager.Manager

	mu       sync.Mutex
	raw      *time.Timer
	notifier *opmanager.FinishedOperationNotifier
}

// New creates a Timer that posts expiry handlers through exec.
func New(exec executor.Executor) *Timer {
	t := &Timer{exec: exec}
	t.mgr = opmanager.New(opmanager.NewReplacerPolicy(), t.cancelOperation)
	return t
}

// StartTimeout arms a one-shot timeout. If a timeout or periodic
// timeout is already running on this Timer, it is cancelled first
// (Replacer policy) and handler for that prior operation is never
// invoked.
func (t *Timer) StartTimeout(d time.Duration, handler Handler) {
	t.mgr.StartOperation(func() { t.startOneShot(d, handler) })
}

// StartPeriodicTimeout arms a periodic timeout firing every interval
// until Cancel is called.
func (t *Timer) StartPeriodicTimeout(interval time.Duration, handler Handler) {
	t.mgr.StartOperation(func() { t.startPeriodic(interval, handler) })
}

// Cancel stops any running timeout or periodic sequence. The
// scheduled handler is not invoked with the success path.
func (t *Timer) Cancel() {
	t.mgr.CancelOperation()
}

func (t *Timer) startOneShot(d time.Duration, handler Handler) {
	notifier := opmanager.NewFinishedOperationNotifier(t.mgr)

	t.mu.Lock()
	t.notifier = notifier
	t.raw = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.notifier != notifier {
			t.mu.Unlock()
			return // superseded or cancelled between fire and lock
		}
		t.notifier = nil
		t.mu.Unlock()

		notifier.Notify()
		t.exec.Post(func() { handler() })
	})
	t.mu.Unlock()
}

func (t *Timer) startPeriodic(interval time.Duration, handler Handler) {
	notifier := opmanager.NewFinishedOperationNotifier(t.mgr)

	t.mu.Lock()
	t.notifier = notifier
	next := time.Now().Add(interval)
	t.scheduleNextLocked(notifier, next, interval, handler)
	t.mu.Unlock()
}

// scheduleNextLocked must be called with t.mu held.
func (t *Timer) scheduleNextLocked(notifier *opmanager.FinishedOperationNotifier, deadline time.Time, interval time.Duration, handler Handler) {
	wait := time.Until(deadline)
	t.raw = time.AfterFunc(wait, func() {
		t.mu.Lock()
		if t.notifier != notifier {
			t.mu.Unlock()
			return
		}
		nextDeadline := deadline.Add(interval)
		t.scheduleNextLocked(notifier, nextDeadline, interval, handler)
		t.mu.Unlock()

		t.exec.Post(func() { handler() })
	})
}

// cancelOperation is the manager's cancelingOperation: it stops the
// underlying clock timer and, if a chain (one-shot or periodic) is
// still registered, finishes the manager's in-flight operation so the
// next pending StartTimeout/StartPeriodicTimeout can dispatch.
func (t *Timer) cancelOperation() {
	t.mu.Lock()
	if t.raw != nil {
		t.raw.Stop()
	}
	n := t.notifier
	t.notifier = nil
	t.mu.Unlock()

	if n != nil {
		n.Close()
	}
}
