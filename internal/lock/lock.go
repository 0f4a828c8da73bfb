// Package lock serializes mutations on the same user or card. Callers take
// every key an operation touches through Acquire, which orders the keys so
// two operations over overlapping key sets cannot deadlock.
package lock

import (
	"context"
	"slices"
	"sync"
)

// Release frees a held lock. Calling it more than once is a no-op.
type Release func()

// Locker hands out exclusive locks by key.
type Locker interface {
	// Lock blocks until key is held or ctx is done.
	Lock(ctx context.Context, key string) (Release, error)
}

// Acquire locks every key in sorted order and returns a Release that frees
// them all. On failure any keys already taken are released.
func Acquire(ctx context.Context, l Locker, keys ...string) (Release, error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]Release, 0, len(sorted))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}

	for _, key := range sorted {
		release, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, release)
	}
	return onceRelease(releaseAll), nil
}

func onceRelease(fn func()) Release {
	var once sync.Once
	return func() { once.Do(fn) }
}
