//go:build linux
// +build linux

// File: pool/arena_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux arena allocator: anonymous mmap keeps block storage off the Go heap,
// so a large pool adds nothing to GC scan time.

package pool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func arenaAlloc(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot mmap %d byte arena: %w", size, err)
	}
	return data, unix.Munmap, nil
}
