// File: internal/concurrency/waitqueue.go
// Package concurrency provides synchronization primitives for pool internals.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FIFO queue of goroutines blocked on slot acquisition. Releases hand freed
// indices directly to the oldest live waiter, so wakeups are never lost and
// late arrivals cannot barge ahead of blocked acquirers.

package concurrency

import "github.com/eapache/queue"

// WaitResult is what a blocked acquirer receives: a handed-off slot index,
// or OK=false when the pool was torn down underneath it.
type WaitResult struct {
	Index uint32
	OK    bool
}

// Waiter represents one goroutine blocked in a timed acquire.
//
// All fields except C are guarded by the pool lock of the owning controller;
// Waiter itself performs no synchronization.
type Waiter struct {
	// C receives the handoff result. Buffered so delivery under the pool
	// lock never blocks on the waiting goroutine.
	C chan WaitResult

	delivered bool
	abandoned bool
}

// NewWaiter creates a waiter ready to be enqueued.
func NewWaiter() *Waiter {
	return &Waiter{C: make(chan WaitResult, 1)}
}

// Abandon marks the waiter dead after a timeout. If a result was already
// handed off, it is drained and returned so the caller can put a delivered
// index back on the free list under the same lock.
//
// Must be called with the pool lock held.
func (w *Waiter) Abandon() (res WaitResult, delivered bool) {
	if w.delivered {
		return <-w.C, true
	}
	w.abandoned = true
	return WaitResult{}, false
}

// WaitQueue is a FIFO of blocked acquirers. It is not internally
// synchronized: every method must run under the owning pool's lock.
type WaitQueue struct {
	q *queue.Queue
}

// NewWaitQueue creates an empty wait queue.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{q: queue.New()}
}

// Push appends a waiter at the tail.
func (wq *WaitQueue) Push(w *Waiter) {
	wq.q.Add(w)
}

// Deliver hands idx to the oldest live waiter, discarding abandoned entries
// along the way. Returns false if no live waiter remains.
func (wq *WaitQueue) Deliver(idx uint32) bool {
	for wq.q.Length() > 0 {
		w := wq.q.Remove().(*Waiter)
		if w.abandoned {
			continue
		}
		w.delivered = true
		w.C <- WaitResult{Index: idx, OK: true}
		return true
	}
	return false
}

// FailAll wakes every live waiter with a failed result. Used on teardown so
// no acquirer blocks on a pool that will never release again.
func (wq *WaitQueue) FailAll() {
	for wq.q.Length() > 0 {
		w := wq.q.Remove().(*Waiter)
		if w.abandoned {
			continue
		}
		w.delivered = true
		w.C <- WaitResult{}
	}
}

// Len returns the number of queued entries, including abandoned ones that
// have not been discarded yet.
func (wq *WaitQueue) Len() int {
	return wq.q.Length()
}
