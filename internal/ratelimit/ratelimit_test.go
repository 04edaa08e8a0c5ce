package ratelimit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func newTestLimiter(t *testing.T, config *Config) (*Limiter, *fakeClock) {
	t.Helper()
	if config == nil {
		config = DefaultConfig()
	}
	config.CleanupInterval = 0
	limiter := NewLimiter(config, NewMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter.now = clock.Now
	t.Cleanup(limiter.Stop)
	return limiter, clock
}

func TestLimiter_EleventhRequestDenied(t *testing.T) {
	limiter, clock := newTestLimiter(t, nil)
	ctx := context.Background()
	start := clock.Now()

	// Spaced so the burst window never fills
	for i := 0; i < 10; i++ {
		d := limiter.Check(ctx, "client-a")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 9-i, d.Remaining)
		assert.Equal(t, 10, d.Limit)
		clock.Advance(3 * time.Second)
	}

	d := limiter.Check(ctx, "client-a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, start.Add(60*time.Second), d.ResetTime)
	assert.Equal(t, 31*time.Second, d.RetryAfter)
}

func TestLimiter_WindowSlides(t *testing.T) {
	limiter, clock := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Check(ctx, "client-a").Allowed)
		clock.Advance(3 * time.Second)
	}
	require.False(t, limiter.Check(ctx, "client-a").Allowed)

	// Past the first request's expiry one slot frees up
	clock.Advance(31 * time.Second)
	assert.True(t, limiter.Check(ctx, "client-a").Allowed)

	// A full window later everything has expired
	clock.Advance(61 * time.Second)
	d := limiter.Check(ctx, "client-a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 9, d.Remaining)
}

func TestLimiter_BurstBlocks(t *testing.T) {
	limiter, clock := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Check(ctx, "client-b").Allowed, "request %d", i+1)
	}

	d := limiter.Check(ctx, "client-b")
	assert.False(t, d.Allowed)
	assert.Equal(t, 10*time.Second, d.RetryAfter)

	blocked, err := limiter.IsBlocked(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, blocked)

	// Still blocked part way through, and the remaining block time is reported
	clock.Advance(4 * time.Second)
	d = limiter.Check(ctx, "client-b")
	assert.False(t, d.Allowed)
	assert.Equal(t, 6*time.Second, d.RetryAfter)

	clock.Advance(7 * time.Second)
	assert.True(t, limiter.Check(ctx, "client-b").Allowed)
}

func TestLimiter_ClientsIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		limiter.Check(ctx, "noisy")
	}
	assert.False(t, limiter.Check(ctx, "noisy").Allowed)
	assert.True(t, limiter.Check(ctx, "quiet").Allowed)
}

func TestLimiter_BlockAndReset(t *testing.T) {
	limiter, clock := newTestLimiter(t, nil)
	ctx := context.Background()

	require.NoError(t, limiter.Block(ctx, "client-c", time.Minute))
	d := limiter.Check(ctx, "client-c")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	require.NoError(t, limiter.Reset(ctx, "client-c"))
	blocked, err := limiter.IsBlocked(ctx, "client-c")
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.True(t, limiter.Check(ctx, "client-c").Allowed)

	require.NoError(t, limiter.Block(ctx, "client-c", time.Second))
	clock.Advance(2 * time.Second)
	assert.True(t, limiter.Check(ctx, "client-c").Allowed)
}

func TestLimiter_ClearAll(t *testing.T) {
	limiter, _ := newTestLimiter(t, nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		for i := 0; i < 6; i++ {
			limiter.Check(ctx, id)
		}
	}
	require.NoError(t, limiter.ClearAll(ctx))
	assert.True(t, limiter.Check(ctx, "a").Allowed)
	assert.True(t, limiter.Check(ctx, "b").Allowed)
}

func TestLimiter_Whitelist(t *testing.T) {
	config := DefaultConfig()
	config.Whitelist = map[string]bool{"127.0.0.1": true}
	limiter, _ := newTestLimiter(t, config)

	// Whitelisted IP should always be allowed
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Check(context.Background(), "127.0.0.1").Allowed, "request %d", i+1)
	}
}

func TestLimiter_Blacklist(t *testing.T) {
	config := DefaultConfig()
	config.Blacklist = map[string]bool{"192.168.1.1": true}
	limiter, _ := newTestLimiter(t, config)

	assert.False(t, limiter.Check(context.Background(), "192.168.1.1").Allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter, _ := newTestLimiter(t, &Config{Enabled: false})

	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Check(context.Background(), "127.0.0.1").Allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	config := DefaultConfig()
	config.MaxRequests = 100
	config.BurstLimit = 0
	limiter, _ := newTestLimiter(t, config)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	// Make 200 concurrent requests (should only allow 100)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Check(context.Background(), "127.0.0.1").Allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowedCount)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Admit(context.Context, string, time.Time, Policy) (Decision, error) {
	return Decision{}, fmt.Errorf("store offline")
}

func TestLimiter_StoreFailureAdmits(t *testing.T) {
	limiter := NewLimiter(&Config{Enabled: true, MaxRequests: 1, Window: time.Minute}, &failingStore{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Check(context.Background(), "x").Allowed)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := DefaultConfig().policy()

	for i := 0; i < 4; i++ {
		_, err := store.Admit(ctx, fmt.Sprintf("10.0.0.%d", i), now, p)
		require.NoError(t, err)
	}
	require.NoError(t, store.Block(ctx, "blocked", now.Add(time.Hour)))
	_, err := store.Admit(ctx, "fresh", now.Add(50*time.Second), p)
	require.NoError(t, err)

	removed := store.Sweep(now.Add(90*time.Second), time.Minute)
	assert.Equal(t, 4, removed)
	assert.Equal(t, 2, store.Len())
}

func TestNewLimiter_NilConfig(t *testing.T) {
	limiter := NewLimiter(nil, nil, nil)
	defer limiter.Stop()

	d := limiter.Check(context.Background(), "127.0.0.1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 10, d.Limit)
	assert.Equal(t, 9, d.Remaining)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "25")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("RATE_LIMIT_BURST_LIMIT", "not-a-number")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1 , ,10.0.0.2")

	config := LoadConfig()
	assert.True(t, config.Enabled)
	assert.Equal(t, 25, config.MaxRequests)
	assert.Equal(t, 2*time.Minute, config.Window)
	assert.Equal(t, 5, config.BurstLimit)
	assert.Equal(t, 10*time.Second, config.BurstWindow)
	assert.Equal(t, map[string]bool{"10.0.0.1": true, "10.0.0.2": true}, config.Whitelist)
	assert.Empty(t, config.Blacklist)
}

func TestLoadConfig_Disabled(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	assert.False(t, LoadConfig().Enabled)
}
