package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetIfAbsent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "k", "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetIfAbsent(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", val)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	ok, err := s.SetIfAbsent(ctx, "k", "v", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	// Still live just before the deadline.
	current = current.Add(49 * time.Millisecond)
	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	// Gone at the deadline; the slot is reusable.
	current = current.Add(time.Millisecond)
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	ok, err = s.SetIfAbsent(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	require.NoError(t, s.Set(ctx, "k", "v", 0))

	current = current.Add(24 * time.Hour)
	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryStore_CompareAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "token-a", time.Minute))

	ok, err := s.CompareAndDelete(ctx, "k", "token-b")
	require.NoError(t, err)
	assert.False(t, ok, "wrong holder must not delete")

	ok, err = s.CompareAndDelete(ctx, "k", "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndDelete(ctx, "k", "token-a")
	require.NoError(t, err)
	assert.False(t, ok, "second delete finds nothing")
}

func TestMemoryStore_CompareAndExtend(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	require.NoError(t, s.Set(ctx, "k", "token", 100*time.Millisecond))

	// Extend before expiry pushes the deadline out.
	current = current.Add(80 * time.Millisecond)
	ok, err := s.CompareAndExtend(ctx, "k", "token", 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	current = current.Add(90 * time.Millisecond)
	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	// Wrong holder cannot extend.
	ok, err = s.CompareAndExtend(ctx, "k", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// After expiry there is nothing to extend.
	current = current.Add(time.Hour)
	ok, err = s.CompareAndExtend(ctx, "k", "token", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ConcurrentSetIfAbsent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SetIfAbsent(ctx, "contested", "w", time.Minute)
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestMemoryStore_Len(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	current := time.Now()
	s.now = func() time.Time { return current }

	require.NoError(t, s.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, s.Set(ctx, "b", "2", 10*time.Millisecond))
	assert.Equal(t, 2, s.Len())

	current = current.Add(time.Second)
	assert.Equal(t, 1, s.Len())
}
