package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_SerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, RoomKey("r1"))
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				seen := maxSeen.Load()
				if n <= seen || maxSeen.CompareAndSwap(seen, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, activeSlots(locker))
}

func TestMemoryLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := NewMemoryLocker()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockA, err := locker.Lock(ctx, RoomKey("a"))
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := locker.Lock(ctx, RoomKey("b"))
	require.NoError(t, err)
	unlockB()
}

func TestMemoryLocker_TimesOut(t *testing.T) {
	locker := NewMemoryLocker()
	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock()
	assert.Zero(t, activeSlots(locker))

	unlock, err = locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

type recordingLocker struct {
	mu       sync.Mutex
	acquired []string
	released []string
	failOn   string
}

func (r *recordingLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key == r.failOn {
		return nil, ErrLockTimeout
	}
	r.acquired = append(r.acquired, key)
	return func() {
		r.mu.Lock()
		r.released = append(r.released, key)
		r.mu.Unlock()
	}, nil
}

func TestLockAll(t *testing.T) {
	t.Run("acquires in ascending order and releases in reverse", func(t *testing.T) {
		rec := &recordingLocker{}
		unlock, err := LockAll(context.Background(), rec, "room:b", "room:a", "", "room:b")
		require.NoError(t, err)
		assert.Equal(t, []string{"room:a", "room:b"}, rec.acquired)

		unlock()
		unlock()
		assert.Equal(t, []string{"room:b", "room:a"}, rec.released)
	})

	t.Run("releases partial acquisitions on failure", func(t *testing.T) {
		rec := &recordingLocker{failOn: "room:c"}
		_, err := LockAll(context.Background(), rec, "room:c", "room:a")
		assert.ErrorIs(t, err, ErrLockTimeout)
		assert.Equal(t, []string{"room:a"}, rec.acquired)
		assert.Equal(t, []string{"room:a"}, rec.released)
	})
}

func activeSlots(m *MemoryLocker) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func TestKeepAlive(t *testing.T) {
	t.Run("renews until stopped", func(t *testing.T) {
		var renewals atomic.Int32
		stop := keepAlive(time.Millisecond, func(context.Context) (bool, error) {
			renewals.Add(1)
			return true, nil
		})

		require.Eventually(t, func() bool { return renewals.Load() >= 3 }, time.Second, time.Millisecond)
		stop()
		after := renewals.Load()
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, after, renewals.Load(), "no renewals after stop")
	})

	t.Run("keeps trying through transient errors", func(t *testing.T) {
		var calls atomic.Int32
		stop := keepAlive(time.Millisecond, func(context.Context) (bool, error) {
			if calls.Add(1) == 1 {
				return false, context.DeadlineExceeded
			}
			return true, nil
		})
		defer stop()

		require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	})

	t.Run("stops once the lease is lost", func(t *testing.T) {
		var calls atomic.Int32
		stop := keepAlive(time.Millisecond, func(context.Context) (bool, error) {
			calls.Add(1)
			return false, nil
		})

		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
		stop()
	})
}
