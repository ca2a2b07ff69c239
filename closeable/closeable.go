// File: closeable/closeable.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Closeable Timed-Operation Pattern (C4): imposes a deadline on any
// cancellable I/O handle. Ported from original_source/Closeable.h's
// timedAsyncOperation, generalized with a type parameter for the
// operation's result payload.

package closeable

import (
	"sync"
	"time"

	"github.com/momentics/netasync/aerr"
	"github.com/momentics/netasync/executor"
	"github.com/momentics/netasync/timer"
)

// Handle is any cancellable I/O object: a socket, acceptor, or
// resolver. Close aborts any operation currently in flight on it.
type Handle interface {
	Close() error
	IsOpen() bool
}

// Complete is the completion signature an Op must call exactly once.
// err is the raw transport error (nil on success); result carries
// whatever payload the operation produced.
type Complete[R any] func(err error, result R)

// Op starts an asynchronous operation on some handle and arranges to
// call complete exactly once, synchronously or later.
type Op[R any] func(complete Complete[R])

// Run arms a fresh, single-use Timer for timeout against handle,
// invokes op, and delivers exactly one of (success, failedOperation,
// aborted) to handler once whichever of {timer, op} completes first
// has run. Both completions are funneled through a sync.Once so
// exactly one of them decides the outcome; the other observes a
// closed handle or a cancelled timer and yields no visible effect on
// the result.
func Run[R any](exec executor.Executor, handle Handle, timeout time.Duration, op Op[R], handler func(err *aerr.Error, result R)) {
	var once sync.Once
	var zero R

	finish := func(err *aerr.Error, result R) {
		once.Do(func() { handler(err, result) })
	}

	tmr := timer.New(exec)
	tmr.StartTimeout(timeout, func() {
		_ = handle.Close()
		finish(aerr.New(aerr.Aborted), zero)
	})

	op(func(rawErr error, result R) {
		tmr.Cancel()

		var final *aerr.Error
		switch {
		case !handle.IsOpen():
			final = aerr.New(aerr.Aborted)
		case rawErr != nil:
			final = aerr.Wrap(aerr.FailedOperation, rawErr)
		}
		// op's goroutine performed the raw I/O off the executor;
		// the completion itself must run on a pool-scheduled
		// goroutine, matching io_context::run() dispatching
		// completions on the same worker that waited for them.
		exec.Post(func() { finish(final, result) })
	})
}
