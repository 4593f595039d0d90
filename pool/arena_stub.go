//go:build !linux
// +build !linux

// File: pool/arena_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fallback arena allocator for platforms without the mmap path.

package pool

func arenaAlloc(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}
