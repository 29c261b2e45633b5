// Package lock provides keyed mutexes.
// Each key gets its own mutex; entries are dropped once no goroutine holds or waits on them.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// entry wraps a mutex with the number of goroutines holding or waiting on it.
type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed serializes work per key. Different keys never block each other.
type Keyed[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// New creates an empty keyed lock.
func New[K comparable]() *Keyed[K] {
	return &Keyed[K]{entries: make(map[K]*entry)}
}

// acquire returns the entry for key with its reference taken.
func (l *Keyed[K]) acquire(key K) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

// release drops a reference and forgets the entry once unused.
func (l *Keyed[K]) release(key K, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Lock blocks until the key's lock is held.
func (l *Keyed[K]) Lock(key K) {
	l.acquire(key).mu.Lock()
}

// Unlock releases the key's lock. Unlocking a key that is not locked panics.
func (l *Keyed[K]) Unlock(key K) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("lock: unlock of unlocked key %v", key))
	}
	e.mu.Unlock()
	l.release(key, e)
}

// TryLock acquires the key's lock without blocking.
// Returns true if the lock was acquired.
func (l *Keyed[K]) TryLock(key K) bool {
	e := l.acquire(key)
	if e.mu.TryLock() {
		return true
	}
	l.release(key, e)
	return false
}

// LockContext blocks until the key's lock is held or ctx is done.
// On ctx expiry it returns an error wrapping ErrLockTimeout.
func (l *Keyed[K]) LockContext(ctx context.Context, key K) error {
	e := l.acquire(key)
	if e.mu.TryLock() {
		return nil
	}

	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The waiter still acquires eventually; hand the lock straight back.
		go func() {
			<-done
			e.mu.Unlock()
			l.release(key, e)
		}()
		return fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}
}

// WithLock runs fn while holding the key's lock.
func (l *Keyed[K]) WithLock(key K, fn func() error) error {
	l.Lock(key)
	defer l.Unlock(key)
	return fn()
}

// WithLockContext runs fn while holding the key's lock, giving up when ctx is done first.
func (l *Keyed[K]) WithLockContext(ctx context.Context, key K, fn func() error) error {
	if err := l.LockContext(ctx, key); err != nil {
		return err
	}
	defer l.Unlock(key)
	return fn()
}

// IsLocked reports whether the key is currently held.
// This is a point-in-time check and may change immediately after.
func (l *Keyed[K]) IsLocked(key K) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return false
	}
	if e.mu.TryLock() {
		e.mu.Unlock()
		return false
	}
	return true
}

// Len returns the number of keys currently held or waited on.
func (l *Keyed[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
