package ratelimiter

import (
	"context"
	"time"
)

// RateLimiter is the interface for rate limiting.
// Allow reports whether a request is allowed and consumes one unit when it is.
type RateLimiter interface {
	Allow() bool
}

// Quota is a counter that separates checking from consuming.
// Available reports whether another unit may be consumed without consuming it;
// Record consumes one unit. A caller that checks and later records can race
// with other callers, so the ceiling is advisory under concurrency.
type Quota interface {
	Available(ctx context.Context) (bool, error)
	Record(ctx context.Context) error
}

// Clock returns the current time. Tests replace it to drive window expiry.
type Clock func() time.Time
