// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import "github.com/momentics/hioload-mempool/api"

// FakeBytePool is a trivial stub pool for testing collaborators: every
// Acquire allocates fresh, Release is a no-op, nothing is ever exhausted.
type FakeBytePool struct {
	Size int
}

func (f *FakeBytePool) Acquire() ([]byte, bool) {
	size := f.Size
	if size == 0 {
		size = 4096
	}
	return make([]byte, size), true
}

func (f *FakeBytePool) Release(_ []byte) {}

var _ api.BytePool = (*FakeBytePool)(nil)
