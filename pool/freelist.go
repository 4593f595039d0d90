// File: pool/freelist.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Free list for fixed-capacity slot storage. A per-slot bitmap is the
// authoritative occupancy record; an intrusive doubly-linked list over slot
// indices gives O(1) pop, push, and arbitrary removal. Pop order is
// most-recently-freed-first for reuse locality.
//
// The structure is not synchronized; every method must run under the owning
// controller's lock.

package pool

const noIndex = ^uint32(0)

type freeList struct {
	bits []uint64 // bit set = slot free
	next []uint32
	prev []uint32
	head uint32

	// ends holds cumulative segment end offsets. Contiguous runs never
	// cross a segment boundary because storage segments are separate
	// allocations.
	ends []uint32

	free int
}

// newFreeList creates a list with all of capacity slots free, forming the
// first storage segment.
func newFreeList(capacity uint32) *freeList {
	fl := &freeList{
		bits: make([]uint64, (capacity+63)/64),
		next: make([]uint32, capacity),
		prev: make([]uint32, capacity),
		head: noIndex,
	}
	fl.ends = append(fl.ends, capacity)
	// Link in reverse so index 0 pops first from a fresh pool.
	for i := capacity; i > 0; i-- {
		fl.link(i - 1)
	}
	fl.free = int(capacity)
	return fl
}

func (fl *freeList) isFree(idx uint32) bool {
	return fl.bits[idx/64]&(1<<(idx%64)) != 0
}

func (fl *freeList) setFree(idx uint32, free bool) {
	if free {
		fl.bits[idx/64] |= 1 << (idx % 64)
	} else {
		fl.bits[idx/64] &^= 1 << (idx % 64)
	}
}

// link inserts idx at the head without touching the free counter or bitmap.
func (fl *freeList) link(idx uint32) {
	fl.setFree(idx, true)
	fl.prev[idx] = noIndex
	fl.next[idx] = fl.head
	if fl.head != noIndex {
		fl.prev[fl.head] = idx
	}
	fl.head = idx
}

// unlink removes idx from the list without touching the free counter.
func (fl *freeList) unlink(idx uint32) {
	fl.setFree(idx, false)
	p, n := fl.prev[idx], fl.next[idx]
	if p != noIndex {
		fl.next[p] = n
	} else {
		fl.head = n
	}
	if n != noIndex {
		fl.prev[n] = p
	}
}

// pop removes and returns the most recently freed index.
func (fl *freeList) pop() (uint32, bool) {
	if fl.head == noIndex {
		return 0, false
	}
	idx := fl.head
	fl.unlink(idx)
	fl.free--
	return idx, true
}

// push returns idx to the list. Reports false if idx is already free, which
// signals a double release.
func (fl *freeList) push(idx uint32) bool {
	if fl.isFree(idx) {
		return false
	}
	fl.link(idx)
	fl.free++
	return true
}

// popRun removes k contiguously indexed free slots as one unit, first-fit
// within a single segment. All-or-nothing: on failure no slot changes state.
func (fl *freeList) popRun(k uint32) (uint32, bool) {
	if k == 0 || int(k) > fl.free {
		return 0, false
	}
	var start uint32
	for _, end := range fl.ends {
		if end-start >= k {
			if base, ok := fl.scanRun(start, end, k); ok {
				for i := uint32(0); i < k; i++ {
					fl.unlink(base + i)
				}
				fl.free -= int(k)
				return base, true
			}
		}
		start = end
	}
	return 0, false
}

// scanRun finds k consecutive free indices in [lo, hi).
func (fl *freeList) scanRun(lo, hi, k uint32) (uint32, bool) {
	run := uint32(0)
	for i := lo; i < hi; i++ {
		if fl.isFree(i) {
			run++
			if run == k {
				return i - k + 1, true
			}
		} else {
			run = 0
		}
	}
	return 0, false
}

// grow extends the list by n slots forming a new segment, all free.
func (fl *freeList) grow(n uint32) {
	old := fl.capacity()
	total := old + n
	for uint32(len(fl.bits))*64 < total {
		fl.bits = append(fl.bits, 0)
	}
	fl.next = append(fl.next, make([]uint32, n)...)
	fl.prev = append(fl.prev, make([]uint32, n)...)
	fl.ends = append(fl.ends, total)
	for i := total; i > old; i-- {
		fl.link(i - 1)
	}
	fl.free += int(n)
}

func (fl *freeList) capacity() uint32 {
	return fl.ends[len(fl.ends)-1]
}
