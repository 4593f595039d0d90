// File: pool/controller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool Controller: the synchronized owner of slot storage and the free list.
// All occupancy truth lives here. Critical sections are short and never call
// back into pool code, so handle release cannot deadlock on a held lock.

package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mempool/api"
	"github.com/momentics/hioload-mempool/internal/concurrency"
)

// segments is an immutable snapshot of the storage segment table. Grow
// publishes a new snapshot; slot cells themselves never move, so element
// pointers held by live handles stay valid across Grow.
type segments[T any] struct {
	offs []uint32 // start offset of each segment
	segs [][]T
}

func (s *segments[T]) slot(idx uint32) *T {
	for i := len(s.offs) - 1; i >= 0; i-- {
		if idx >= s.offs[i] {
			return &s.segs[i][idx-s.offs[i]]
		}
	}
	panic(api.ErrIndexOutOfRange)
}

// Controller combines slot storage with the free list behind one lock.
// A Controller is safe for concurrent use by any number of goroutines.
type Controller[T any] struct {
	mu      sync.Mutex
	fl      *freeList
	waiters *concurrency.WaitQueue

	// closed is written only under mu; the atomic lets handle dereference
	// fail fast on a torn-down controller without taking the pool lock.
	closed atomic.Bool

	segv atomic.Pointer[segments[T]]

	capCnt   atomic.Int64
	freeCnt  atomic.Int64
	acquires atomic.Int64
	releases atomic.Int64
	waiting  atomic.Int64
}

// NewController preallocates storage for capacity slots, all free.
// Capacity must be positive; the facade validates caller input.
func NewController[T any](capacity uint32) *Controller[T] {
	if capacity == 0 {
		panic(api.ErrInvalidCapacity)
	}
	c := &Controller[T]{
		fl:      newFreeList(capacity),
		waiters: concurrency.NewWaitQueue(),
	}
	c.segv.Store(&segments[T]{
		offs: []uint32{0},
		segs: [][]T{make([]T, capacity)},
	})
	c.capCnt.Store(int64(capacity))
	c.freeCnt.Store(int64(capacity))
	return c
}

// TryAcquire removes and returns one free index. It never blocks; ok is
// false if the pool is exhausted or closed.
func (c *Controller[T]) TryAcquire() (api.SlotIndex, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return 0, false
	}
	idx, ok := c.fl.pop()
	if !ok {
		return 0, false
	}
	c.freeCnt.Add(-1)
	c.acquires.Add(1)
	return idx, true
}

// AcquireBlocking blocks until a slot frees or timeout elapses. A zero
// timeout fails immediately; a negative timeout waits indefinitely. On
// timeout the free list is untouched and the error unwraps to
// api.ErrPoolExhausted.
func (c *Controller[T]) AcquireBlocking(timeout time.Duration) (api.SlotIndex, error) {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return 0, api.ErrPoolClosed
	}
	if idx, ok := c.fl.pop(); ok {
		c.freeCnt.Add(-1)
		c.acquires.Add(1)
		c.mu.Unlock()
		return idx, nil
	}
	if timeout == 0 {
		c.mu.Unlock()
		return 0, exhausted("no free slot")
	}
	w := concurrency.NewWaiter()
	c.waiters.Push(w)
	c.waiting.Add(1)
	c.mu.Unlock()
	defer c.waiting.Add(-1)

	if timeout < 0 {
		res := <-w.C
		if !res.OK {
			return 0, api.ErrPoolClosed
		}
		return res.Index, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-w.C:
		if !res.OK {
			return 0, api.ErrPoolClosed
		}
		return res.Index, nil
	case <-timer.C:
		c.mu.Lock()
		res, delivered := w.Abandon()
		c.mu.Unlock()
		if delivered && res.OK {
			// Handoff won the race against the timer; keep the slot.
			return res.Index, nil
		}
		if delivered && !res.OK {
			return 0, api.ErrPoolClosed
		}
		return 0, exhausted("no free slot within timeout")
	}
}

// TryAcquireRun acquires k contiguously indexed slots atomically as a unit,
// or none. Runs never span a storage segment boundary.
func (c *Controller[T]) TryAcquireRun(k int) (api.SlotIndex, bool) {
	if k <= 0 {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() || k > int(c.fl.capacity()) {
		return 0, false
	}
	idx, ok := c.fl.popRun(uint32(k))
	if !ok {
		return 0, false
	}
	c.freeCnt.Add(int64(-k))
	c.acquires.Add(1)
	return idx, true
}

// Release returns a previously acquired index to the free list. Releasing an
// index that is already free is a double-release bug and panics with a value
// unwrapping to api.ErrDoubleRelease. Releasing into a closed controller
// returns api.ErrDetached.
func (c *Controller[T]) Release(idx api.SlotIndex) error {
	return c.releaseRun(idx, 1)
}

func (c *Controller[T]) releaseRun(idx, n uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return api.NewError(api.ErrCodeDetached, "release after pool teardown").
			WithContext("index", idx)
	}
	capacity := c.fl.capacity()
	if idx >= capacity || n == 0 || capacity-idx < n {
		panic(api.ErrIndexOutOfRange)
	}
	// Validate the whole run before mutating anything.
	for i := idx; i < idx+n; i++ {
		if c.fl.isFree(i) {
			panic(api.NewError(api.ErrCodeDoubleRelease, "slot released twice").
				WithContext("index", i))
		}
	}
	sv := c.segv.Load()
	var zero T
	for i := idx; i < idx+n; i++ {
		// Clear before the index becomes reacquirable: the next holder
		// must never observe the previous lease's contents.
		*sv.slot(i) = zero
		if c.waiters.Deliver(i) {
			// Direct handoff: the slot stays leased, changing owner.
			c.acquires.Add(1)
		} else {
			c.fl.push(i)
			c.freeCnt.Add(1)
		}
	}
	c.releases.Add(1)
	return nil
}

// Grow extends storage by additional slots as a new segment. In-flight
// acquire/release operations are synchronized against it and waiters blocked
// on an exhausted pool are woken with the new slots.
func (c *Controller[T]) Grow(additional uint32) error {
	if additional == 0 {
		return api.NewError(api.ErrCodeInvalidSize, "grow size must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return api.ErrPoolClosed
	}
	old := c.segv.Load()
	next := &segments[T]{
		offs: append(append([]uint32{}, old.offs...), c.fl.capacity()),
		segs: append(append([][]T{}, old.segs...), make([]T, additional)),
	}
	c.fl.grow(additional)
	c.segv.Store(next)
	c.capCnt.Add(int64(additional))
	c.freeCnt.Add(int64(additional))

	for c.waiters.Len() > 0 {
		idx, ok := c.fl.pop()
		if !ok {
			break
		}
		if c.waiters.Deliver(idx) {
			c.freeCnt.Add(-1)
			c.acquires.Add(1)
		} else {
			c.fl.push(idx)
			break
		}
	}
	return nil
}

// Close tears the controller down. It refuses while any lease is live:
// the controller must outlive every handle it issued.
func (c *Controller[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return nil
	}
	leased := int64(c.fl.capacity()) - int64(c.fl.free)
	if leased > 0 {
		return api.NewError(api.ErrCodeOutstanding, "pool closed with live handles").
			WithContext("outstanding", leased)
	}
	c.closed.Store(true)
	return nil
}

// ForceClose tears the controller down even while leases are live. Live
// handles become detached: their release reports api.ErrDetached instead of
// touching the free list. Returns the number of leases detached.
func (c *Controller[T]) ForceClose() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return 0
	}
	c.closed.Store(true)
	c.waiters.FailAll()
	return int(c.fl.capacity()) - c.fl.free
}

// Closed reports whether the controller has been torn down. Lock-free so
// handle dereference can check it on every access.
func (c *Controller[T]) Closed() bool {
	return c.closed.Load()
}

// Capacity returns the total number of slots.
func (c *Controller[T]) Capacity() int {
	return int(c.capCnt.Load())
}

// Free returns the number of currently unleased slots. The value is a
// snapshot and may be stale immediately after return under concurrency.
func (c *Controller[T]) Free() int {
	return int(c.freeCnt.Load())
}

// Stats returns a consistent accounting snapshot taken under the pool lock.
func (c *Controller[T]) Stats() api.PoolStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	capacity := int64(c.fl.capacity())
	free := int64(c.fl.free)
	return api.PoolStats{
		Capacity:      capacity,
		Free:          free,
		Leased:        capacity - free,
		TotalAcquires: c.acquires.Load(),
		TotalReleases: c.releases.Load(),
		Waiters:       c.waiting.Load(),
	}
}

func exhausted(msg string) error {
	return api.NewError(api.ErrCodeExhausted, msg)
}
