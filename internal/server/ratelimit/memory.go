package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter counts requests per fixed window in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: map[string]*window{}, now: time.Now}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string, limit int, windowSize time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= windowSize {
		w = &window{start: now}
		m.windows[key] = w
	}

	if w.count >= limit {
		return Decision{
			Allowed:    false,
			RetryAfter: windowSize - now.Sub(w.start),
		}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: limit - w.count}, nil
}
