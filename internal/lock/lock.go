// Package lock serializes writers of the same room.
package lock

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrLockTimeout is returned when a lock cannot be acquired before the
// context is done.
var ErrLockTimeout = errors.New("lock: timed out waiting for lock")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker grants exclusive access per key. Different keys never contend.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// RoomKey is the lock key guarding writes to one room.
func RoomKey(roomID string) string {
	return "room:" + roomID
}

// LockAll acquires every key in ascending order and returns a single Unlock
// releasing them in reverse. Duplicate and empty keys are ignored. On failure
// nothing stays held.
func LockAll(ctx context.Context, locker Locker, keys ...string) (Unlock, error) {
	sorted := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			sorted = append(sorted, k)
		}
	}
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]Unlock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, key := range sorted {
		unlock, err := locker.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// MemoryLocker is an in-process Locker. Idle keys are dropped so the map only
// holds keys that are locked or awaited.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done.
func (m *MemoryLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.waiters++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, s, false)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(key, s, true) })
	}, nil
}

func (m *MemoryLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	m.mu.Lock()
	s.waiters--
	if s.waiters == 0 {
		delete(m.slots, key)
	}
	m.mu.Unlock()
}
