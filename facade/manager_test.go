package facade_test

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mempool/api"
	"github.com/momentics/hioload-mempool/facade"
)

func TestManager_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := facade.New[int](&facade.Config{Capacity: capacity})
		assert.ErrorIs(t, err, api.ErrInvalidCapacity, "capacity %d", capacity)
	}
}

func TestManager_CapacitySizeOverflow(t *testing.T) {
	// math.MaxInt/2^20 + 1 slots of a 2^20-byte element overflow the
	// addressable limit without instantiating giant stack locals.
	type big struct {
		data [1 << 20]byte
	}
	_, err := facade.New[big](&facade.Config{Capacity: math.MaxInt/(1<<20) + 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrInvalidCapacity)
}

func TestManager_AllocateAndIntrospect(t *testing.T) {
	mgr, err := facade.New[int64](&facade.Config{Capacity: 4})
	require.NoError(t, err)

	assert.Equal(t, 4, mgr.Capacity())
	assert.Equal(t, 4, mgr.Available())

	h, err := mgr.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 3, mgr.Available())
	assert.Zero(t, *h.Get(), "fresh slot must be zero-valued")

	*h.Get() = -9
	require.NoError(t, h.Release())
	assert.Equal(t, 4, mgr.Available())
	require.NoError(t, mgr.Close())
}

func TestManager_ExhaustionPolicy(t *testing.T) {
	mgr, err := facade.New[int](&facade.Config{Capacity: 3})
	require.NoError(t, err)

	var handles []interface{ Release() error }
	for i := 0; i < 3; i++ {
		h, err := mgr.Allocate()
		require.NoError(t, err)
		handles = append(handles, h)
	}

	_, err = mgr.Allocate()
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrPoolExhausted)

	for _, h := range handles {
		require.NoError(t, h.Release())
	}
	require.NoError(t, mgr.Close())
}

func TestManager_BlockingPolicy(t *testing.T) {
	mgr, err := facade.New[int](&facade.Config{
		Capacity:       1,
		Blocking:       true,
		AcquireTimeout: 25 * time.Millisecond,
	})
	require.NoError(t, err)

	h, err := mgr.Allocate()
	require.NoError(t, err)

	_, err = mgr.Allocate()
	require.Error(t, err, "blocking allocate must time out on an exhausted pool")
	assert.ErrorIs(t, err, api.ErrPoolExhausted)

	done := make(chan error, 1)
	go func() {
		h2, err := mgr.Allocate()
		if err == nil {
			err = h2.Release()
		}
		done <- err
	}()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, h.Release())
	require.NoError(t, <-done)
	require.NoError(t, mgr.Close())
}

func TestManager_AllocateArray(t *testing.T) {
	mgr, err := facade.New[byte](&facade.Config{Capacity: 8})
	require.NoError(t, err)

	for _, k := range []int{0, -3, 9} {
		_, err := mgr.AllocateArray(k)
		assert.ErrorIs(t, err, api.ErrInvalidSize, "k=%d", k)
	}

	h, err := mgr.AllocateArray(8)
	require.NoError(t, err)
	assert.Equal(t, 8, h.Len())
	assert.Equal(t, 0, mgr.Available())

	_, err = mgr.AllocateArray(1)
	assert.ErrorIs(t, err, api.ErrPoolExhausted)

	require.NoError(t, h.Release())
	require.NoError(t, mgr.Close())
}

func TestManager_InitConstructor(t *testing.T) {
	type conn struct{ state int }
	mgr, err := facade.NewWithInit[conn](&facade.Config{Capacity: 4}, func() conn {
		return conn{state: 1}
	})
	require.NoError(t, err)

	h, err := mgr.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 1, h.Get().state)
	require.NoError(t, h.Release())

	ha, err := mgr.AllocateArray(3)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, ha.At(i).state, "array element %d", i)
	}
	require.NoError(t, ha.Release())
	require.NoError(t, mgr.Close())
}

func TestManager_Grow(t *testing.T) {
	mgr, err := facade.New[int](&facade.Config{Capacity: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.Grow(0), api.ErrInvalidSize)
	assert.ErrorIs(t, mgr.Grow(-1), api.ErrInvalidSize)

	h, err := mgr.Allocate()
	require.NoError(t, err)
	*h.Get() = 5

	require.NoError(t, mgr.Grow(6))
	assert.Equal(t, 8, mgr.Capacity())
	assert.Equal(t, 7, mgr.Available())
	assert.Equal(t, 5, *h.Get(), "handles stay valid across Grow")

	require.NoError(t, h.Release())
	require.NoError(t, mgr.Close())
}

func TestManager_TeardownOrdering(t *testing.T) {
	mgr, err := facade.New[int](&facade.Config{Capacity: 2})
	require.NoError(t, err)

	h, err := mgr.Allocate()
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.Close(), api.ErrHandlesOutstanding)

	require.NoError(t, h.Release())
	require.NoError(t, mgr.Close())

	_, err = mgr.Allocate()
	assert.ErrorIs(t, err, api.ErrPoolClosed)
	assert.ErrorIs(t, mgr.Grow(1), api.ErrPoolClosed)
}

func TestManager_ShutdownDetachesHandles(t *testing.T) {
	mgr, err := facade.New[int](&facade.Config{Capacity: 2})
	require.NoError(t, err)

	h, err := mgr.Allocate()
	require.NoError(t, err)

	err = mgr.Shutdown()
	require.Error(t, err, "shutdown with live handles must report loudly")
	assert.ErrorIs(t, err, api.ErrHandlesOutstanding)

	assert.PanicsWithValue(t, api.ErrDetached, func() { h.Get() },
		"dereferencing a detached handle must fail fast")
	assert.ErrorIs(t, h.Release(), api.ErrDetached)
}

func TestManager_SharedAcrossGoroutines(t *testing.T) {
	mgr, err := facade.New[[64]byte](&facade.Config{
		Capacity:       16,
		Blocking:       true,
		AcquireTimeout: time.Second,
	})
	require.NoError(t, err)

	cycles := 20000
	if testing.Short() {
		cycles = 1000
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < cycles; i++ {
				h, err := mgr.Allocate()
				if err != nil {
					t.Errorf("goroutine %d: %v", g, err)
					return
				}
				h.Get()[0] = byte(g)
				if err := h.Release(); err != nil {
					t.Errorf("goroutine %d release: %v", g, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	st := mgr.Stats()
	assert.Equal(t, st.Capacity, st.Free+st.Leased)
	assert.Equal(t, int64(16), st.Free)
	require.NoError(t, mgr.Close())
}
