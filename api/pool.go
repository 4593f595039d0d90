// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs: typed slot allocators and fixed-size
// byte-block pools for zero-GC memory reuse.

package api

// SlotIndex is the stable address of one storage cell within a pool.
// Slots never move; an index stays valid for the lifetime of its pool.
type SlotIndex = uint32

// BytePool provides reusable fixed-size []byte blocks.
type BytePool interface {
	// Acquire returns one block, or false if the pool is exhausted.
	Acquire() ([]byte, bool)

	// Release returns a block to the pool. Releasing a block twice is a
	// fatal programming error.
	Release(buf []byte)
}

// StatsSource exposes resource/accounting metrics for observability.
type StatsSource interface {
	Stats() PoolStats
}

// PoolStats aggregates slot accounting for one pool.
//
// Counts are snapshots: consistent with the pool's state at the instant of
// the call, possibly stale immediately after under concurrency.
type PoolStats struct {
	Capacity      int64
	Free          int64
	Leased        int64
	TotalAcquires int64
	TotalReleases int64
	Waiters       int64
}
