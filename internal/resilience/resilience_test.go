// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func init() {
	// Shrink the jitter scale so tests finish quickly.
	jitterUnit = time.Microsecond
}

func testService(opts ...Option) *Service {
	cfg := types.ResilienceConfig{
		MaxRetries: 5,
		BaseDelay:  time.Microsecond,
		CacheTTL:   time.Minute,
		StaleTTL:   10 * time.Minute,
	}
	return NewService(NewTTLCache(), cfg, opts...)
}

func TestWithResilience_CacheHitSkipsCall(t *testing.T) {
	s := testService()
	var calls int32
	fn := func(_ context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "payload", nil
	}

	r1, err := s.WithResilience(context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)
	r2, err := s.WithResilience(context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)

	assert.Equal(t, "payload", r1.Value)
	assert.Equal(t, "payload", r2.Value)
	assert.False(t, r2.Stale)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call within TTL must not invoke fn")
}

func TestWithResilience_RateLimitedThenSuccess(t *testing.T) {
	s := testService()
	var calls int32
	fn := func(_ context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, &StatusError{Source: "pubmed", Status: 429}
		}
		return "ok", nil
	}

	var retries int32
	sink := &recordingEvents{onRetry: func() { atomic.AddInt32(&retries, 1) }}
	s.events = sink

	r, err := s.WithResilience(context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", r.Value)
	assert.False(t, r.Stale)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&retries), "exactly two retries must be recorded")
}

func TestWithResilience_PermanentFailsWithoutRetry(t *testing.T) {
	s := testService()
	var calls int32
	fn := func(_ context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &StatusError{Source: "pubmed", Status: 404}
	}

	_, err := s.WithResilience(context.Background(), "k", time.Minute, fn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermanentUpstream)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWithResilience_StaleFallbackAfterExhaustion(t *testing.T) {
	now := time.Now()
	clock := &fakeClock{t: now}
	cache := NewTTLCacheWithClock(clock.Now)
	cfg := types.ResilienceConfig{
		MaxRetries: 2,
		BaseDelay:  time.Microsecond,
		CacheTTL:   time.Minute,
		StaleTTL:   10 * time.Minute,
	}
	s := NewService(cache, cfg)

	// Seed the cache, then expire the entry past its TTL but within the
	// stale window.
	cache.Set("k", "old payload", time.Minute)
	clock.Advance(5 * time.Minute)

	fn := func(_ context.Context) (any, error) {
		return nil, &StatusError{Source: "pubmed", Status: 503}
	}

	r, err := s.WithResilience(context.Background(), "k", time.Minute, fn)
	require.NoError(t, err)
	assert.True(t, r.Stale)
	assert.Equal(t, "old payload", r.Value)
}

func TestWithResilience_NoFallbackReturnsClassifiedError(t *testing.T) {
	s := testService()
	fn := func(_ context.Context) (any, error) {
		return nil, &StatusError{Source: "europepmc", Status: 503}
	}

	_, err := s.WithResilience(context.Background(), "k", time.Minute, fn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransientUpstream)
}

func TestDelayBounds(t *testing.T) {
	cfg := types.ResilienceConfig{MaxRetries: 5, BaseDelay: 3 * time.Second}
	for _, r := range []float64{0, 0.5, 0.999} {
		s := NewService(NewTTLCache(), cfg, WithRand(func() float64 { return r }))
		for attempt := uint(0); attempt < 5; attempt++ {
			d := s.Delay(attempt)
			lo := time.Duration(1<<attempt)*3*time.Second + time.Duration(jitterMin*float64(jitterUnit))
			hi := time.Duration(1<<attempt)*3*time.Second + time.Duration(jitterMax*float64(jitterUnit))
			assert.GreaterOrEqual(t, d, lo, "attempt %d rand %v", attempt, r)
			assert.LessOrEqual(t, d, hi, "attempt %d rand %v", attempt, r)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"429 status", &StatusError{Source: "s", Status: 429}, KindRateLimited},
		{"500 status", &StatusError{Source: "s", Status: 500}, KindTransient},
		{"503 status", &StatusError{Source: "s", Status: 503}, KindTransient},
		{"404 status", &StatusError{Source: "s", Status: 404}, KindPermanent},
		{"quota message", errors.New("API quota exceeded for project"), KindRateLimited},
		{"rate limit message", fmt.Errorf("call failed: rate limit hit"), KindRateLimited},
		{"plain error", errors.New("no such host"), KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

// --- helpers ---

type recordingEvents struct {
	onRetry func()
}

func (r *recordingEvents) RetryAttempted(string, int, error) {
	if r.onRetry != nil {
		r.onRetry()
	}
}
func (r *recordingEvents) StaleServed(string)         {}
func (r *recordingEvents) SourceFailed(string, error) {}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time            { return c.t }
func (c *fakeClock) Advance(d time.Duration)   { c.t = c.t.Add(d) }
