// Package ratelimit caps request rates per account and operation class.
// The Redis backend shares windows across server processes; the memory
// backend is the single-process fallback when Redis is not configured.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow check. RetryAfter is meaningful only
// when Allowed is false.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}
