// File: executor/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded MPMC queue of Tasks, adapted from the teacher's
// core/concurrency.LockFreeQueue (Vyukov's MPMC ring) and narrowed to
// the single element type this package needs.

package executor

import "sync/atomic"

type cell struct {
	sequence atomic.Uint64
	data     Task
}

type lockFreeQueue struct {
	head uint64
	_    [56]byte
	tail uint64
	_    [56]byte
	mask uint64
	cell []cell
}

func newLockFreeQueue(capacity int) *lockFreeQueue {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &lockFreeQueue{
		mask: uint64(size - 1),
		cell: make([]cell, size),
	}
	for i := range q.cell {
		q.cell[i].sequence.Store(uint64(i))
	}
	return q
}

// Enqueue adds task; returns false if the queue is full.
func (q *lockFreeQueue) Enqueue(task Task) bool {
	for {
		tail := atomic.LoadUint64(&q.tail)
		c := &q.cell[tail&q.mask]
		seq := c.sequence.Load()
		switch diff := int64(seq) - int64(tail); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				c.data = task
				c.sequence.Store(tail + 1)
				return true
			}
		case diff < 0:
			return false
		}
	}
}

// Dequeue removes and returns a task; ok is false if the queue is
// empty.
func (q *lockFreeQueue) Dequeue() (task Task, ok bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		c := &q.cell[head&q.mask]
		seq := c.sequence.Load()
		switch diff := int64(seq) - int64(head+1); {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				task = c.data
				c.data = nil
				c.sequence.Store(head + q.mask + 1)
				return task, true
			}
		case diff < 0:
			return nil, false
		}
	}
}
