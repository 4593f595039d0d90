// File: pool/blockpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BlockPool: lock-free pool of fixed-size off-heap byte blocks. This is the
// fast-path variant of the allocator: single-size blocks, no runs, no
// blocking, free indices circulated through a bounded MPMC ring with
// per-block lease state catching double-free fatally.
//
// The optional guard mode fingerprints every freed block with xxhash and
// verifies the fingerprint on reuse, turning silent write-after-free into a
// loud failure.

package pool

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/momentics/hioload-mempool/api"
	"github.com/momentics/hioload-mempool/internal/concurrency"
)

const guardPoison = 0xA5

const (
	blockFree   = 0
	blockLeased = 1
)

// BlockPool hands out capacity blocks of blockSize bytes each, backed by one
// contiguous arena (mmap on Linux, heap elsewhere). Safe for concurrent use.
type BlockPool struct {
	blockSize int
	capacity  int
	guard     bool

	arena []byte
	base  uintptr
	free  func([]byte) error

	state []atomic.Uint32
	sums  []uint64
	freeq *concurrency.IndexQueue

	leased   atomic.Int64
	acquires atomic.Int64
	releases atomic.Int64

	closeMu sync.Mutex // serializes Close attempts only; hot paths stay lock-free
	closed  atomic.Bool

	// inflight counts operations currently between the closed check and
	// their last arena access. Close waits for it to drain before the
	// arena is unmapped, so no Acquire or Release ever touches freed
	// memory.
	inflight atomic.Int64
}

var _ api.BytePool = (*BlockPool)(nil)
var _ api.StatsSource = (*BlockPool)(nil)

// NewBlockPool preallocates capacity blocks of blockSize bytes. The total
// arena size is overflow-checked before any memory is touched. With guard
// enabled, freed blocks are poisoned and fingerprinted.
func NewBlockPool(blockSize, capacity int, guard bool) (*BlockPool, error) {
	if capacity <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidCapacity, "block pool capacity must be positive").
			WithContext("capacity", capacity)
	}
	if blockSize <= 0 || blockSize > math.MaxInt/capacity {
		return nil, api.NewError(api.ErrCodeInvalidSize, "block size invalid or arena size overflows").
			WithContext("block_size", blockSize).
			WithContext("capacity", capacity)
	}
	arena, free, err := arenaAlloc(blockSize * capacity)
	if err != nil {
		return nil, err
	}
	bp := &BlockPool{
		blockSize: blockSize,
		capacity:  capacity,
		guard:     guard,
		arena:     arena,
		base:      uintptr(unsafe.Pointer(&arena[0])),
		free:      free,
		state:     make([]atomic.Uint32, capacity),
		sums:      make([]uint64, capacity),
		freeq:     concurrency.NewIndexQueue(capacity),
	}
	for i := 0; i < capacity; i++ {
		if guard {
			bp.seal(uint32(i))
		}
		bp.freeq.Enqueue(uint32(i))
	}
	return bp, nil
}

// Acquire returns one zeroed block, or false if the pool is exhausted or
// closed. It never blocks.
func (bp *BlockPool) Acquire() ([]byte, bool) {
	bp.inflight.Add(1)
	defer bp.inflight.Add(-1)
	if bp.closed.Load() {
		return nil, false
	}
	idx, ok := bp.freeq.Dequeue()
	if !ok {
		return nil, false
	}
	if !bp.state[idx].CompareAndSwap(blockFree, blockLeased) {
		panic(api.NewError(api.ErrCodeInternal, "free list handed out a leased block").
			WithContext("index", idx))
	}
	block := bp.block(idx)
	if bp.guard {
		if xxhash.Sum64(block) != bp.sums[idx] {
			panic(api.NewError(api.ErrCodeInternal, "block modified after release").
				WithContext("index", idx))
		}
		clear(block)
	}
	bp.leased.Add(1)
	bp.acquires.Add(1)
	return block, true
}

// Release returns a block to the pool. The block must be exactly one handed
// out by Acquire; a foreign or misaligned slice, or a second release of the
// same block, is a fatal programming error.
func (bp *BlockPool) Release(buf []byte) {
	bp.inflight.Add(1)
	defer bp.inflight.Add(-1)
	idx := bp.indexOf(buf)
	if !bp.state[idx].CompareAndSwap(blockLeased, blockFree) {
		panic(api.NewError(api.ErrCodeDoubleRelease, "block released twice").
			WithContext("index", idx))
	}
	if bp.guard {
		bp.seal(idx)
	} else {
		clear(buf)
	}
	bp.leased.Add(-1)
	bp.releases.Add(1)
	if !bp.freeq.Enqueue(idx) {
		panic(api.NewError(api.ErrCodeInternal, "free ring rejected a unique index").
			WithContext("index", idx))
	}
}

// Stats returns an accounting snapshot.
func (bp *BlockPool) Stats() api.PoolStats {
	leased := bp.leased.Load()
	return api.PoolStats{
		Capacity:      int64(bp.capacity),
		Free:          int64(bp.capacity) - leased,
		Leased:        leased,
		TotalAcquires: bp.acquires.Load(),
		TotalReleases: bp.releases.Load(),
	}
}

// BlockSize returns the fixed size of every block.
func (bp *BlockPool) BlockSize() int { return bp.blockSize }

// Capacity returns the total number of blocks.
func (bp *BlockPool) Capacity() int { return bp.capacity }

// Close releases the arena back to the operating system. It refuses while
// any block is leased. Teardown synchronizes with in-flight operations: the
// closed flag turns away new ones, the inflight count drains the ones
// already past the flag, and only then is the lease count judged and the
// arena unmapped.
func (bp *BlockPool) Close() error {
	bp.closeMu.Lock()
	defer bp.closeMu.Unlock()
	if bp.closed.Load() {
		return nil
	}
	bp.closed.Store(true)
	for bp.inflight.Load() > 0 {
		runtime.Gosched()
	}
	if leased := bp.leased.Load(); leased > 0 {
		bp.closed.Store(false)
		return api.NewError(api.ErrCodeOutstanding, "block pool closed with leased blocks").
			WithContext("outstanding", leased)
	}
	return bp.free(bp.arena)
}

// seal poisons a free block and records its fingerprint.
func (bp *BlockPool) seal(idx uint32) {
	block := bp.block(idx)
	for i := range block {
		block[i] = guardPoison
	}
	bp.sums[idx] = xxhash.Sum64(block)
}

func (bp *BlockPool) block(idx uint32) []byte {
	off := int(idx) * bp.blockSize
	return bp.arena[off : off+bp.blockSize : off+bp.blockSize]
}

// indexOf maps a released slice back to its block index, rejecting slices
// that were not handed out by this pool.
func (bp *BlockPool) indexOf(buf []byte) uint32 {
	if len(buf) != bp.blockSize {
		panic(api.ErrIndexOutOfRange)
	}
	p := uintptr(unsafe.Pointer(&buf[0]))
	if p < bp.base {
		panic(api.ErrIndexOutOfRange)
	}
	off := p - bp.base
	if off%uintptr(bp.blockSize) != 0 || off >= uintptr(bp.blockSize*bp.capacity) {
		panic(api.ErrIndexOutOfRange)
	}
	return uint32(off / uintptr(bp.blockSize))
}
