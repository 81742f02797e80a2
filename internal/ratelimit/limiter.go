// Package ratelimit paces outgoing probes so a scan does not trip the
// target's rate limiting or look like a flood.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/finsec-lab/apiaudit/internal/config"
	"golang.org/x/time/rate"
)

// Limiter combines a global token bucket with a method-aware minimum
// delay: mutating calls (POST/PUT) wait longer than reads before being
// dispatched.
type Limiter struct {
	limiter       *rate.Limiter
	mutatingDelay time.Duration
	readDelay     time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

func DefaultConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		RequestsPerSecond: 10.0,
		BurstSize:         5,
		MutatingDelay:     1000 * time.Millisecond,
		ReadDelay:         300 * time.Millisecond,
	}
}

func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	if cfg.RequestsPerSecond == 0 {
		cfg = DefaultConfig()
	}
	return &Limiter{
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		mutatingDelay: cfg.MutatingDelay,
		readDelay:     cfg.ReadDelay,
	}
}

// Wait blocks until the global rate limiter admits one request.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// WaitForMethod enforces the method-specific minimum gap since the
// previous request on top of the global limit.
func (l *Limiter) WaitForMethod(ctx context.Context, method string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	delay := l.DelayFor(method)

	l.mu.Lock()
	last := l.lastRequest
	l.mu.Unlock()

	if !last.IsZero() {
		if elapsed := time.Since(last); elapsed < delay {
			select {
			case <-time.After(delay - elapsed):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	l.mu.Lock()
	l.lastRequest = time.Now()
	l.mu.Unlock()
	return nil
}

// DelayFor returns the minimum pre-request gap for an HTTP method.
func (l *Limiter) DelayFor(method string) time.Duration {
	switch method {
	case http.MethodPost, http.MethodPut:
		return l.mutatingDelay
	default:
		return l.readDelay
	}
}

// Reset clears pacing state.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRequest = time.Time{}
}
