// Package concurrency provides the synchronization primitives behind the
// pool package: a bounded MPMC index queue for lock-free block recycling and
// a FIFO wait queue for blocking acquisition.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package concurrency
