package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(5, time.Hour, func() time.Time { return now })

	for i := range 5 {
		ok, err := l.Allow(ctx, "member")
		require.NoError(t, err)
		assert.True(t, ok, "event %d", i+1)
	}

	ok, err := l.Allow(ctx, "member")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Hour + time.Second)
	ok, err = l.Allow(ctx, "member")
	require.NoError(t, err)
	assert.True(t, ok, "window slides")
}

func TestMemoryLimiter_ForgetsIdleKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(1, time.Hour, func() time.Time { return now })

	for i := range 100 {
		ok, err := l.Allow(ctx, fmt.Sprintf("10.0.0.%d", i))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Len(t, l.events, 100)

	now = now.Add(time.Hour + time.Second)
	ok, err := l.Allow(ctx, "10.0.1.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, l.events, 1, "expired requesters are swept")

	t.Run("zero limit keeps no state", func(t *testing.T) {
		l := NewMemoryLimiter(0, time.Hour, nil)
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, l.events)
	})
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	l := NewMemoryLimiter(10, time.Hour, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Allow(ctx, "k")
			if err == nil && ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNewRedisLimiter(t *testing.T) {
	l := NewRedisLimiter(nil, "magic-link", 5, time.Hour)
	assert.Equal(t, 5, l.limit)
	assert.Equal(t, time.Hour, l.window)
	assert.Equal(t, "magic-link", l.scope)
}
