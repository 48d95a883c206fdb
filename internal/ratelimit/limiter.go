// Package ratelimit implements the two rate limiters named in SPEC_FULL §5.4:
// the caller-facing sliding-window admission gate of spec.md §4.4, and a
// per-MX-domain outbound throttle adapted from the teacher's
// RateLimiterManager.
package ratelimit

import (
	"context"
	"time"
)

// Limiter is the sliding-window admission gate contract of spec.md §4.4.
type Limiter interface {
	// Check reports whether id is allowed to proceed at the current time,
	// atomically recording the admission if so.
	Check(ctx context.Context, id string) (allowed bool, err error)
	// Usage returns the current in-window count for id and the configured
	// limit/window, used to render the X-RateLimit-* headers.
	Usage(ctx context.Context, id string) (current, limit int, window time.Duration, err error)
	// SetConfig updates the limit/window for subsequent Check calls.
	SetConfig(limit int, window time.Duration)
}

// Headers computes the three X-RateLimit-* header values mandated by
// spec.md §4.4.
func Headers(current, limit int, window time.Duration, now time.Time) (limitHdr, remainingHdr int, resetHdr int64) {
	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now.Add(window)
	return limit, remaining, (resetAt.UnixMilli() + 999) / 1000
}
