package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/finsec-lab/apiaudit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayForMethod(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	assert.Equal(t, 1000*time.Millisecond, l.DelayFor("POST"))
	assert.Equal(t, 1000*time.Millisecond, l.DelayFor("PUT"))
	assert.Equal(t, 300*time.Millisecond, l.DelayFor("GET"))
	assert.Equal(t, 300*time.Millisecond, l.DelayFor("DELETE"))
}

func TestWaitForMethodEnforcesGap(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{
		RequestsPerSecond: 1000,
		BurstSize:         1000,
		MutatingDelay:     80 * time.Millisecond,
		ReadDelay:         10 * time.Millisecond,
	})

	ctx := context.Background()
	require.NoError(t, l.WaitForMethod(ctx, "GET"))

	start := time.Now()
	require.NoError(t, l.WaitForMethod(ctx, "POST"))
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond,
		"POST must wait the mutating gap since the previous request")
}

func TestWaitForMethodRespectsCancellation(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{
		RequestsPerSecond: 1000,
		BurstSize:         1000,
		MutatingDelay:     5 * time.Second,
		ReadDelay:         5 * time.Second,
	})

	ctx := context.Background()
	require.NoError(t, l.WaitForMethod(ctx, "GET"))

	cancelled, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	err := l.WaitForMethod(cancelled, "POST")
	assert.Error(t, err)
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{})
	assert.Equal(t, 1000*time.Millisecond, l.DelayFor("POST"))
}

func TestReset(t *testing.T) {
	l := NewLimiter(config.RateLimitConfig{
		RequestsPerSecond: 1000,
		BurstSize:         1000,
		MutatingDelay:     200 * time.Millisecond,
		ReadDelay:         200 * time.Millisecond,
	})

	ctx := context.Background()
	require.NoError(t, l.WaitForMethod(ctx, "GET"))
	l.Reset()

	start := time.Now()
	require.NoError(t, l.WaitForMethod(ctx, "GET"))
	assert.Less(t, time.Since(start), 150*time.Millisecond, "reset clears the pacing gap")
}
