// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// jitterMin and jitterMax bound the uniform jitter added to each backoff
// delay, in jitterUnit multiples.
const (
	jitterMin = 2.0
	jitterMax = 5.0
)

// jitterUnit scales the jitter bounds. Tests override this to avoid real
// sleeps.
var jitterUnit = time.Second

// Events receives retry and fallback notifications. The metrics recorder
// implements it; a nil Events is silently ignored.
type Events interface {
	RetryAttempted(key string, attempt int, err error)
	StaleServed(key string)
	SourceFailed(key string, err error)
}

// Result is the outcome of a resilient call.
type Result struct {
	// Value is the cached or freshly fetched payload.
	Value any

	// Stale is set when the value was served from an expired cache entry
	// after retries exhausted.
	Stale bool
}

// Service wraps external calls with caching, classified retries, and a
// stale-cache fallback. One Service is constructed per process and injected
// into every source client.
type Service struct {
	cache  *TTLCache
	cfg    types.ResilienceConfig
	log    *zap.Logger
	events Events

	// randFloat returns a uniform value in [0,1); injectable for
	// deterministic delay tests.
	randFloat func() float64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithEvents sets the retry/fallback event sink.
func WithEvents(ev Events) Option {
	return func(s *Service) { s.events = ev }
}

// WithRand sets the jitter randomness source.
func WithRand(f func() float64) Option {
	return func(s *Service) { s.randFloat = f }
}

// NewService builds a Service around the given cache. Zero config fields fall
// back to the package defaults.
func NewService(cache *TTLCache, cfg types.ResilienceConfig, opts ...Option) *Service {
	def := types.DefaultEngineConfig().Resilience
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.StaleTTL <= 0 {
		cfg.StaleTTL = def.StaleTTL
	}

	s := &Service{
		cache:     cache,
		cfg:       cfg,
		log:       zap.NewNop(),
		randFloat: rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the underlying cache, mainly for explicit clearing.
func (s *Service) Cache() *TTLCache { return s.cache }

// Delay returns the backoff delay for the given retry attempt (zero-based):
// base * 2^attempt plus a uniform jitter in [2,5] seconds.
func (s *Service) Delay(attempt uint) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * s.cfg.BaseDelay
	jitter := time.Duration((jitterMin + s.randFloat()*(jitterMax-jitterMin)) * float64(jitterUnit))
	return backoff + jitter
}

// WithResilience runs fn with cache-first semantics. A fresh cache hit for
// key skips fn entirely. On a miss, fn is retried on rate-limited and
// transient failures up to the configured budget; permanent failures abort
// immediately. When the call ultimately fails, an expired entry within the
// stale window is served with the Stale flag set; otherwise the classified
// error is returned.
//
// Same-key concurrent calls may race to populate the cache; last writer
// wins. There is no single-flight guarantee.
func (s *Service) WithResilience(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (any, error)) (Result, error) {
	if ttl <= 0 {
		ttl = s.cfg.CacheTTL
	}

	if v, ok := s.cache.Get(key); ok {
		return Result{Value: v}, nil
	}

	value, err := retry.DoWithData(
		func() (any, error) { return fn(ctx) },
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.MaxRetries)+1),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return Classify(err) != KindPermanent
		}),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return s.Delay(n)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn("retrying upstream call",
				zap.String("key", key),
				zap.Uint("attempt", n+1),
				zap.String("kind", Classify(err).String()),
				zap.Error(err))
			if s.events != nil {
				s.events.RetryAttempted(key, int(n)+1, err)
			}
		}),
	)
	if err == nil {
		s.cache.Set(key, value, ttl)
		return Result{Value: value}, nil
	}

	kind := Classify(err)
	if stale, ok := s.cache.GetStale(key, s.cfg.StaleTTL); ok {
		s.log.Warn("serving stale cache entry after upstream failure",
			zap.String("key", key),
			zap.String("kind", kind.String()))
		if s.events != nil {
			s.events.StaleServed(key)
		}
		return Result{Value: stale, Stale: true}, nil
	}

	if s.events != nil {
		s.events.SourceFailed(key, err)
	}
	return Result{}, fmt.Errorf("%w: %s: %w", kind.Sentinel(), key, err)
}
