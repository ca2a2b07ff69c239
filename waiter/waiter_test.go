package waiter_test

import (
	"testing"
	"time"

	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/waiter"
)

func TestAwaitBlockingFromExternalThread(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()
	w := waiter.New(exec)
	wa := w.NewWaitable()

	exec.Post(func() {
		time.Sleep(10 * time.Millisecond)
		wa.SetReady()
	})

	w.Await(wa.Ready)
	if !wa.Ready() {
		t.Error("expected waitable to be ready after Await returns")
	}
}

func TestAwaitCooperativeFromExecutorThread(t *testing.T) {
	exec := executor.New(1)
	defer exec.Stop()
	w := waiter.New(exec)

	done := make(chan struct{})
	exec.Post(func() {
		// Simulate a handler that itself must wait on a nested
		// completion while running on an executor worker: it must
		// not block the condvar, since no other worker exists to
		// make progress.
		inner := w.NewWaitable()
		exec.Post(func() { inner.SetReady() })
		w.Await(inner.Ready)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cooperative await deadlocked")
	}
}

func TestAndOrComposition(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()
	w := waiter.New(exec)
	a := w.NewWaitable()
	b := w.NewWaitable()

	exec.Post(func() { a.SetReady() })
	w.Await(waiter.Or(a, b))

	b.SetWaiting()
	exec.Post(func() {
		time.Sleep(5 * time.Millisecond)
		b.SetReady()
	})
	w.Await(waiter.And(a, b))
	if !a.Ready() || !b.Ready() {
		t.Error("expected both waitables ready")
	}
}
