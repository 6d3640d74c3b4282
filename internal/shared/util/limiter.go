package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by callers that must not run a costly
// operation more often than a configured rate.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter allows perSecond events with the given burst. A non-positive
// rate disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(limit, burst)}
}

// Allow reports whether n events may happen now. A nil limiter always allows.
func (l *Limiter) Allow(n int) bool {
	if l == nil {
		return true
	}
	return l.inner.AllowN(time.Now(), n)
}

// Delay returns how long to wait before n events are allowed, without
// consuming tokens.
func (l *Limiter) Delay(n int) time.Duration {
	if l == nil {
		return 0
	}
	r := l.inner.ReserveN(time.Now(), n)
	if !r.OK() {
		return 0
	}
	d := r.Delay()
	r.Cancel()
	return d
}

// Wait blocks until n events are allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return nil
	}
	return l.inner.WaitN(ctx, n)
}
