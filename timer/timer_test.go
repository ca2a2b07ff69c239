package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/timer"
)

func TestOneShotFires(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()
	tm := timer.New(exec)

	fired := make(chan struct{})
	start := time.Now()
	tm.StartTimeout(20*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
		if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
			t.Errorf("fired too early: %v", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
}

func TestCancelSuppressesHandler(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()
	tm := timer.New(exec)

	var fired atomic.Bool
	tm.StartTimeout(30*time.Millisecond, func() { fired.Store(true) })
	tm.Cancel()

	time.Sleep(60 * time.Millisecond)
	if fired.Load() {
		t.Error("expected cancelled timeout to never fire")
	}
}

func TestPeriodicFivePulsesThenCancel(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()
	tm := timer.New(exec)

	var count atomic.Int32
	tm.StartPeriodicTimeout(10*time.Millisecond, func() {
		count.Add(1)
	})

	deadline := time.Now().Add(200 * time.Millisecond)
	for count.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	tm.Cancel()
	seenAtCancel := count.Load()
	if seenAtCancel < 5 {
		t.Fatalf("expected at least 5 pulses, saw %d", seenAtCancel)
	}

	time.Sleep(50 * time.Millisecond)
	if count.Load() != seenAtCancel {
		t.Errorf("expected no further pulses after cancel, went from %d to %d", seenAtCancel, count.Load())
	}
}

func TestNewTimeoutReplacesPrior(t *testing.T) {
	exec := executor.New(2)
	defer exec.Stop()
	tm := timer.New(exec)

	var firstFired, secondFired atomic.Bool
	tm.StartTimeout(500*time.Millisecond, func() { firstFired.Store(true) })
	tm.StartTimeout(15*time.Millisecond, func() { secondFired.Store(true) })

	time.Sleep(60 * time.Millisecond)
	if firstFired.Load() {
		t.Error("expected first (superseded) timeout to never fire")
	}
	if !secondFired.Load() {
		t.Error("expected second timeout to fire")
	}
}
