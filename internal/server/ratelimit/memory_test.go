package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_CapsAndResets(t *testing.T) {
	clock := time.Unix(1000, 0)
	l := NewMemoryLimiter()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "sync:u1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "sync:u1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	// a different key has its own window
	d, err = l.Allow(ctx, "sync:u2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// window rollover clears the count
	clock = clock.Add(time.Minute)
	d, err = l.Allow(ctx, "sync:u1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
