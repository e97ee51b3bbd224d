package rpc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// admitted reports whether a request to endpoint goes through without waiting.
func admitted(rl *RateLimiter, endpoint string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	return rl.Wait(ctx, endpoint) == nil
}

func TestRateLimiter_Burst(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(10, 10)

	for i := 0; i < 10; i++ {
		assert.True(t, admitted(rl, "provider"), "request %d should fit in burst", i)
	}
	assert.False(t, admitted(rl, "provider"), "burst exhausted")
}

func TestRateLimiter_SeparateEndpoints(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(10, 2)

	assert.True(t, admitted(rl, "a"))
	assert.True(t, admitted(rl, "a"))
	assert.False(t, admitted(rl, "a"))

	assert.True(t, admitted(rl, "b"))
	assert.True(t, admitted(rl, "b"))
}

func TestRateLimiter_Wait(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(100, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rl.Wait(ctx, "provider"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "provider"))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestRateLimiter_ContextCancellation(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1, 1)
	require.NoError(t, rl.Wait(context.Background(), "provider"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, rl.Wait(ctx, "provider"))
}

func TestRateLimiter_Defaults(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(0, -1)
	for i := 0; i < defaultBurst; i++ {
		assert.True(t, admitted(rl, "x"))
	}
	assert.False(t, admitted(rl, "x"))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(1000, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = admitted(rl, "shared")
		}()
	}
	wg.Wait()
	assert.Len(t, rl.limiters, 1)
}
