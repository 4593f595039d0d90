// Package pool
// Author: momentics <momentics@gmail.com>
//
// Core of hioload-mempool: fixed-capacity slot storage, the synchronized
// free list, scoped Handle leases, and the lock-free fixed-size BlockPool.
// The facade package wraps Controller behind the public MemoryManager entry
// point; most callers should start there.
package pool
