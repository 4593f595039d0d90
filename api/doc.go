// Package api
// Author: momentics <momentics@gmail.com>
//
// Shared contracts of hioload-mempool: error taxonomy, slot addressing,
// pooling interfaces, and accounting snapshots. Implementations live in the
// pool and facade packages; this package has no dependencies so collaborators
// can depend on the contracts alone.
package api
