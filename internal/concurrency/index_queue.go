// File: internal/concurrency/index_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded MPMC queue of slot indices using sequence numbers.
// Based on the pattern by Dmitry Vyukov for MPMC queues.

package concurrency

import "sync/atomic"

const cacheLinePad = 64

type indexCell struct {
	sequence atomic.Uint64
	index    uint32
}

// IndexQueue is a bounded multi-producer/multi-consumer queue of slot
// indices. It backs the lock-free free list of fixed-size block pools.
type IndexQueue struct {
	head  uint64
	_     [cacheLinePad]byte
	tail  uint64
	_     [cacheLinePad]byte
	mask  uint64
	cells []indexCell
}

// NewIndexQueue creates a queue able to hold at least capacity indices.
// Capacity is rounded up to a power of two.
func NewIndexQueue(capacity int) *IndexQueue {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}

	q := &IndexQueue{
		mask:  uint64(size - 1),
		cells: make([]indexCell, size),
	}
	for i := range q.cells {
		q.cells[i].sequence.Store(uint64(i))
	}
	return q
}

// Enqueue adds idx; returns false if the queue is full.
func (q *IndexQueue) Enqueue(idx uint32) bool {
	for {
		tail := atomic.LoadUint64(&q.tail)
		c := &q.cells[tail&q.mask]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				c.index = idx
				c.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false // full
		}
		// tail moved, retry
	}
}

// Dequeue removes and returns an index; ok is false if the queue is empty.
func (q *IndexQueue) Dequeue() (idx uint32, ok bool) {
	for {
		head := atomic.LoadUint64(&q.head)
		c := &q.cells[head&q.mask]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)

		switch {
		case dif == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				idx = c.index
				c.sequence.Store(head + q.mask + 1)
				return idx, true
			}
		case dif < 0:
			return 0, false // empty
		}
		// head moved, retry
	}
}

// Len returns an approximate number of queued indices.
func (q *IndexQueue) Len() int {
	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)
	if tail < head {
		return 0
	}
	return int(tail - head)
}
