package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Lock(ctx, "user:1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := l.Lock(ctx, "user:1")
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the released key")
	}
}

func TestLocalDifferentKeysProceed(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	r1, err := l.Lock(ctx, "user:1")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	r2, err := l.Lock(ctx, "card:1")
	require.NoError(t, err)
	r2()
}

func TestLocalHonorsContext(t *testing.T) {
	l := NewLocal()

	release, err := l.Lock(context.Background(), "card:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "card:1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	release()
	assert.Equal(t, 0, l.size())
}

func TestLocalReleaseIsIdempotent(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	release()
	release()

	r, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	r()
	assert.Equal(t, 0, l.size())
}

func TestLocalMutualExclusion(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := Acquire(ctx, l, "user:1", "card:1")
			if err != nil {
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.size())
}

func TestAcquireOrdersAndDedupsKeys(t *testing.T) {
	rec := &recordingLocker{inner: NewLocal()}

	release, err := Acquire(context.Background(), rec, "user:b", "card:a", "user:b")
	require.NoError(t, err)
	release()

	assert.Equal(t, []string{"card:a", "user:b"}, rec.keys)
}

func TestAcquireReleasesOnFailure(t *testing.T) {
	inner := NewLocal()
	rec := &recordingLocker{inner: inner, failOn: "user:z"}

	_, err := Acquire(context.Background(), rec, "user:z", "card:a")
	require.Error(t, err)
	assert.Equal(t, 0, inner.size())
}

type recordingLocker struct {
	inner  *Local
	failOn string
	keys   []string
}

func (r *recordingLocker) Lock(ctx context.Context, key string) (Release, error) {
	r.keys = append(r.keys, key)
	if key == r.failOn {
		return nil, errors.New("boom")
	}
	return r.inner.Lock(ctx, key)
}
