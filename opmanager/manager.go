// File: opmanager/manager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Async Operation Manager: per-endpoint serializer that guarantees at
// most one in-flight operation and dispatches the next pending one
// (Queue or Replacer policy) as soon as the current one finishes.
// Ported from original_source/AsyncOperationManager.h.

package opmanager

import "sync"

// Manager serializes asynchronous operations against a single
// endpoint. It is safe for concurrent use.
type Manager struct {
	mu                 sync.Mutex
	pending            Policy
	running            bool
	canceled           bool
	cancelingOperation func()
}

// New creates a Manager using policy for pending records and
// cancelingOperation as the closer invoked whenever a Replacer policy
// supersedes an in-flight operation, or whenever CancelOperation is
// called directly.
func New(policy Policy, cancelingOperation func()) *Manager {
	return &Manager{pending: policy, cancelingOperation: cancelingOperation}
}

// StartOperation dispatches op immediately if no operation is
// in-flight; otherwise it queues/replaces it per policy. When the
// policy's ShouldCancel is true and an operation is already running,
// the configured cancelingOperation runs first so the in-flight
// operation observes a closed handle before the replacement is
// dispatched by its own completion.
//
// op is invoked outside the manager's lock so that the lock is never
// held while user-visible code runs; the only invariant the lock
// protects is the (running, canceled, pending) state transition
// itself. This is the documented substitute for a recursive mutex
// (see DESIGN.md): the sole reentrant call path is
// StartOperation -> op() -> handler -> FinishOperation, and
// FinishOperation only needs the lock around its own state change.
func (m *Manager) StartOperation(op func()) {
	m.mu.Lock()
	if !m.running {
		m.running = true
		m.mu.Unlock()
		op()
		return
	}

	shouldCancel := m.pending.ShouldCancel()
	m.pending.Push(op)
	m.mu.Unlock()

	if shouldCancel {
		m.cancelingOperation()
	}
}

// FinishOperation clears the canceled latch and, if a pending
// operation exists, dispatches it; otherwise the manager returns to
// idle.
func (m *Manager) FinishOperation() {
	m.mu.Lock()
	m.canceled = false

	next, ok := m.pending.Pop()
	if !ok {
		m.running = false
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	next()
}

// CancelOperation latches canceled, invokes cancelingOperation, and
// drains every pending record. Handlers for drained records are never
// invoked (see spec §9 Open Question).
func (m *Manager) CancelOperation() {
	m.mu.Lock()
	m.canceled = true
	m.pending.Reset()
	m.mu.Unlock()

	m.cancelingOperation()
}

// IsCanceled reports whether the manager's canceled latch is set. An
// in-flight completion that observes this as true must silently drop
// its result instead of invoking the user handler, since its
// cancellation raced with its natural completion.
func (m *Manager) IsCanceled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canceled
}

// Running reports whether an operation is currently in-flight.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// PendingLen reports the number of retained pending records. Exposed
// for tests asserting the Replacer-supersedes and Queue-order
// invariants.
func (m *Manager) PendingLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Len()
}

// FinishedOperationNotifier guarantees FinishOperation is called
// exactly once for the operation it is bound to: once explicitly via
// Notify, or otherwise on GC-independent, deterministic disposal via
// Close. Intended usage is `defer notifier.Close()` immediately after
// construction, with an explicit `notifier.Notify()` on every success
// path; Close after Notify is a no-op.
type FinishedOperationNotifier struct {
	manager *Manager
	enabled bool
}

// NewFinishedOperationNotifier binds a notifier to manager. enabled
// starts true: if the caller never calls Notify, Close still drives
// the next pending operation.
func NewFinishedOperationNotifier(manager *Manager) *FinishedOperationNotifier {
	return &FinishedOperationNotifier{manager: manager, enabled: true}
}

// Notify disables the notifier and calls FinishOperation immediately.
func (n *FinishedOperationNotifier) Notify() {
	if !n.enabled {
		return
	}
	n.enabled = false
	n.manager.FinishOperation()
}

// Close calls FinishOperation if Notify was never called. Safe to
// call after Notify (no-op).
func (n *FinishedOperationNotifier) Close() {
	if !n.enabled {
		return
	}
	n.enabled = false
	n.manager.FinishOperation()
}
