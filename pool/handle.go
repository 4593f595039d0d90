// File: pool/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle: a scoped, exclusive lease of one slot or a contiguous run. Handles
// are issued only by their controller; the consumed flag guarantees the
// underlying slots reach the free list exactly once on every exit path.

package pool

import (
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-mempool/api"
)

// Handle owns idx..idx+n-1 of its controller until released. A Handle may be
// moved between goroutines but must not be used by two goroutines at once;
// the pool provides no synchronization above the lease itself.
type Handle[T any] struct {
	ctrl     *Controller[T]
	idx      uint32
	n        uint32
	released atomic.Bool
}

// TryAcquireHandle acquires one slot and wraps it in a Handle. It never
// blocks; ok is false when the pool is exhausted or closed.
func (c *Controller[T]) TryAcquireHandle() (*Handle[T], bool) {
	idx, ok := c.TryAcquire()
	if !ok {
		return nil, false
	}
	return &Handle[T]{ctrl: c, idx: idx, n: 1}, true
}

// AcquireHandleBlocking blocks until a slot frees or timeout elapses,
// following the AcquireBlocking timeout semantics.
func (c *Controller[T]) AcquireHandleBlocking(timeout time.Duration) (*Handle[T], error) {
	idx, err := c.AcquireBlocking(timeout)
	if err != nil {
		return nil, err
	}
	return &Handle[T]{ctrl: c, idx: idx, n: 1}, nil
}

// TryAcquireRunHandle acquires k contiguous slots as one array-typed lease.
func (c *Controller[T]) TryAcquireRunHandle(k int) (*Handle[T], bool) {
	idx, ok := c.TryAcquireRun(k)
	if !ok {
		return nil, false
	}
	return &Handle[T]{ctrl: c, idx: idx, n: uint32(k)}, true
}

// Get returns a pointer to the first element. The pointer is valid exactly
// as long as the handle is live; dereferencing a released handle panics.
func (h *Handle[T]) Get() *T {
	return h.At(0)
}

// At returns a pointer to element i of an array lease. It panics with
// api.ErrIndexOutOfRange past Len()-1, with api.ErrHandleReleased after
// release, and with api.ErrDetached once the controller has been torn down
// underneath the handle.
func (h *Handle[T]) At(i int) *T {
	if h.released.Load() {
		panic(api.ErrHandleReleased)
	}
	if h.ctrl.Closed() {
		panic(api.ErrDetached)
	}
	if i < 0 || uint32(i) >= h.n {
		panic(api.ErrIndexOutOfRange)
	}
	return h.ctrl.segv.Load().slot(h.idx + uint32(i))
}

// Len returns the element count of the lease (1 for single-slot handles).
func (h *Handle[T]) Len() int {
	return int(h.n)
}

// Index returns the stable index of the first leased slot.
func (h *Handle[T]) Index() api.SlotIndex {
	return h.idx
}

// Release returns the lease to the controller. Exactly one release reaches
// the free list no matter how many goroutines race here: the consumed flag
// flips once. A second Release reports api.ErrHandleReleased; releasing into
// a closed controller reports api.ErrDetached.
func (h *Handle[T]) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return api.ErrHandleReleased
	}
	return h.ctrl.releaseRun(h.idx, h.n)
}

// Close releases the lease, satisfying io.Closer for defer-based scoping.
func (h *Handle[T]) Close() error {
	return h.Release()
}
