package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/gatemesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.KVStore = (*InMemoryStore)(nil)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*InMemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	return NewInMemoryStore(func(o *InMemoryOptions) { o.Now = clock.Now }), clock
}

func TestInMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", "1.5", time.Minute))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.5", v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)

	// deleting again is not an error
	assert.NoError(t, s.Delete(ctx, "k"))
}

func TestInMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	require.NoError(t, s.Set(ctx, "k", "v", 20*time.Second))
	ttl, ok, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20*time.Second, ttl)

	clock.Advance(19 * time.Second)
	ttl, ok, _ = s.TTL(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, time.Second, ttl)

	clock.Advance(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok, "key should expire exactly at its deadline")
	_, ok, _ = s.TTL(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, retained(s), "expired key should be dropped when read")
	assert.Equal(t, 0, s.Purge())
}

func retained(s *InMemoryStore) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func TestInMemoryStore_PurgeDropsUnreadKeys(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("c:+%d:session_created", i), "1", 120*time.Second))
	}
	require.NoError(t, s.Set(ctx, "persistent", "v", 0))

	clock.Advance(time.Hour)
	assert.Equal(t, 101, retained(s))
	assert.Equal(t, 100, s.Purge())
	assert.Equal(t, 1, retained(s))
}

func TestInMemoryStore_ReadDoesNotDropRewrittenKey(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	require.NoError(t, s.Set(ctx, "k", "old", time.Second))
	clock.Advance(2 * time.Second)
	require.NoError(t, s.Set(ctx, "k", "new", time.Minute))

	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestInMemoryStore_CleanupLoop(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewInMemoryStore(func(o *InMemoryOptions) {
		o.Now = clock.Now
		o.CleanupInterval = 5 * time.Millisecond
	})
	t.Cleanup(func() { _ = s.Close() })

	for i := 0; i < 1000; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("c:+%d:session_created", i), "1", 120*time.Second))
	}
	clock.Advance(time.Hour)

	assert.Eventually(t, func() bool { return retained(s) == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "Close is idempotent")
}

func TestInMemoryStore_CloseWithoutCleanupLoop(t *testing.T) {
	s, _ := newTestStore()
	assert.NoError(t, s.Close())
}

func TestInMemoryStore_OverwriteResetsExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	require.NoError(t, s.Set(ctx, "k", "old", 10*time.Second))
	clock.Advance(8 * time.Second)
	require.NoError(t, s.Set(ctx, "k", "new", 10*time.Second))
	clock.Advance(8 * time.Second)

	v, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestInMemoryStore_NoExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	clock.Advance(24 * time.Hour)
	ttl, ok, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.NoExpiry, ttl)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	wg := sync.WaitGroup{}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			if err := s.Set(ctx, key, "v", time.Minute); err != nil {
				t.Errorf("set error: %v", err)
			}
			if _, _, err := s.Get(ctx, key); err != nil {
				t.Errorf("get error: %v", err)
			}
			if i%3 == 0 {
				_ = s.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 5)
}
