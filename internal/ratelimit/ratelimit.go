package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects a request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
