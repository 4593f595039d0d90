// File: facade/manager.go
// Unified facade layer for hioload-mempool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines MemoryManager, the public entry point of the allocator.
// It validates configuration eagerly (capacity, element size overflow,
// allocation sizes) before any storage is touched, wraps the pool.Controller
// behind Allocate/AllocateArray/introspection methods, and enforces teardown
// ordering: the controller outlives every handle it issued.

package facade

import (
	"math"
	"time"
	"unsafe"

	"github.com/momentics/hioload-mempool/api"
	"github.com/momentics/hioload-mempool/pool"
)

// Config holds parameters immutable per manager.
type Config struct {
	Capacity       int           // Number of preallocated slots
	Blocking       bool          // Whether Allocate waits for a free slot
	AcquireTimeout time.Duration // Blocking wait bound; 0 fails immediately, <0 waits forever
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Capacity:       1024,
		Blocking:       false,
		AcquireTimeout: 0,
	}
}

// MemoryManager hands out reusable typed slots from a fixed-capacity pool.
// It is safely shareable across goroutines; callers need no external
// synchronization.
type MemoryManager[T any] struct {
	ctrl *pool.Controller[T]
	cfg  Config

	// init constructs the element placed in a freshly allocated slot.
	// When nil, slots start as the zero value of T.
	init func() T
}

// New constructs a MemoryManager for cfg.Capacity elements of type T.
// It fails with api.ErrInvalidCapacity if the capacity is not positive or if
// capacity * sizeof(T) overflows the addressable size limit.
func New[T any](cfg *Config) (*MemoryManager[T], error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Capacity <= 0 || int64(cfg.Capacity) > math.MaxUint32 {
		return nil, api.NewError(api.ErrCodeInvalidCapacity, "pool capacity out of range").
			WithContext("capacity", cfg.Capacity)
	}
	var zero T
	if size := int(unsafe.Sizeof(zero)); size > 0 && cfg.Capacity > math.MaxInt/size {
		return nil, api.NewError(api.ErrCodeInvalidCapacity, "capacity * element size overflows").
			WithContext("capacity", cfg.Capacity).
			WithContext("element_size", size)
	}
	return &MemoryManager[T]{
		ctrl: pool.NewController[T](uint32(cfg.Capacity)),
		cfg:  *cfg,
	}, nil
}

// NewWithInit is New plus a constructor run on every freshly allocated
// element in place of the zero value.
func NewWithInit[T any](cfg *Config, init func() T) (*MemoryManager[T], error) {
	m, err := New[T](cfg)
	if err != nil {
		return nil, err
	}
	m.init = init
	return m, nil
}

// Allocate acquires one slot and returns its handle. The slot arrives
// zero-valued (or constructed by the init function). Under the non-blocking
// policy an exhausted pool fails immediately with api.ErrPoolExhausted;
// under the blocking policy the call waits up to AcquireTimeout.
func (m *MemoryManager[T]) Allocate() (*pool.Handle[T], error) {
	h, err := m.acquire()
	if err != nil {
		return nil, err
	}
	if m.init != nil {
		*h.Get() = m.init()
	}
	return h, nil
}

func (m *MemoryManager[T]) acquire() (*pool.Handle[T], error) {
	if m.cfg.Blocking {
		return m.ctrl.AcquireHandleBlocking(m.cfg.AcquireTimeout)
	}
	h, ok := m.ctrl.TryAcquireHandle()
	if !ok {
		if m.ctrl.Closed() {
			return nil, api.ErrPoolClosed
		}
		return nil, api.NewError(api.ErrCodeExhausted, "no free slot")
	}
	return h, nil
}

// AllocateArray acquires k contiguous slots as one array-typed handle,
// all-or-nothing. It fails with api.ErrInvalidSize if k is not positive or
// exceeds the pool capacity, and with api.ErrPoolExhausted when no
// contiguous run of k free slots exists.
func (m *MemoryManager[T]) AllocateArray(k int) (*pool.Handle[T], error) {
	if k <= 0 || k > m.ctrl.Capacity() {
		return nil, api.NewError(api.ErrCodeInvalidSize, "array size out of range").
			WithContext("size", k).
			WithContext("capacity", m.ctrl.Capacity())
	}
	h, ok := m.ctrl.TryAcquireRunHandle(k)
	if !ok {
		return nil, api.NewError(api.ErrCodeExhausted, "no contiguous run of requested size").
			WithContext("size", k)
	}
	if m.init != nil {
		for i := 0; i < k; i++ {
			*h.At(i) = m.init()
		}
	}
	return h, nil
}

// Capacity returns the total number of slots.
func (m *MemoryManager[T]) Capacity() int {
	return m.ctrl.Capacity()
}

// Available returns the number of free slots as a snapshot; under
// concurrency the value may be stale immediately after return.
func (m *MemoryManager[T]) Available() int {
	return m.ctrl.Free()
}

// Stats returns a consistent accounting snapshot of the underlying pool.
func (m *MemoryManager[T]) Stats() api.PoolStats {
	return m.ctrl.Stats()
}

// Grow extends the pool by additional slots. Existing handles remain valid.
func (m *MemoryManager[T]) Grow(additional int) error {
	if additional <= 0 || int64(additional) > math.MaxUint32-int64(m.ctrl.Capacity()) {
		return api.NewError(api.ErrCodeInvalidSize, "grow size out of range").
			WithContext("additional", additional)
	}
	return m.ctrl.Grow(uint32(additional))
}

// Close tears the pool down. It fails with api.ErrHandlesOutstanding while
// any handle is live; after a successful Close, Allocate fails with
// api.ErrPoolClosed.
func (m *MemoryManager[T]) Close() error {
	return m.ctrl.Close()
}

// Shutdown tears the pool down unconditionally. Handles still live at this
// point are detached — their release reports api.ErrDetached — and the
// violation of teardown ordering is reported loudly to the caller.
func (m *MemoryManager[T]) Shutdown() error {
	if detached := m.ctrl.ForceClose(); detached > 0 {
		return api.NewError(api.ErrCodeOutstanding, "pool shut down with live handles").
			WithContext("detached", detached)
	}
	return nil
}
