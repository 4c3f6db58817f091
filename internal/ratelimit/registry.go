// Package ratelimit paces outbound calls to upstream providers.
// Every provider gets its own token bucket so a slow explorer never throttles
// an unrelated one.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chain-ledger/internal/config"
	"github.com/chain-ledger/internal/metrics"
)

// Registry hands out one limiter per provider name
type Registry struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	defaultLimit rate.Limit
	perProvider  map[string]rate.Limit
	burst        int
}

// NewRegistry creates a registry from the rate limit configuration.
// A non-positive RPS means the provider is not limited.
func NewRegistry(cfg config.RateLimitConfig) *Registry {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	r := &Registry{
		limiters:     make(map[string]*rate.Limiter),
		defaultLimit: toLimit(cfg.DefaultRPS),
		perProvider:  make(map[string]rate.Limit, len(cfg.PerProvider)),
		burst:        burst,
	}
	for provider, rps := range cfg.PerProvider {
		r.perProvider[provider] = toLimit(rps)
	}
	return r
}

// Unlimited returns a registry that never waits. Useful in tests and CLIs
// pointed at local mirrors.
func Unlimited() *Registry {
	return NewRegistry(config.RateLimitConfig{})
}

func toLimit(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

// Limiter returns the limiter of a provider, creating it on first use
func (r *Registry) Limiter(provider string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[provider]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	limit, ok := r.perProvider[provider]
	if !ok {
		limit = r.defaultLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := r.limiters[provider]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(limit, r.burst)
	r.limiters[provider] = limiter

	return limiter
}

// Wait blocks until the provider's bucket admits one request or ctx is done
func (r *Registry) Wait(ctx context.Context, provider string) error {
	start := time.Now()
	err := r.Limiter(provider).Wait(ctx)
	metrics.RateLimitWait.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	return err
}

// Allow reports whether a request may go out right now without waiting
func (r *Registry) Allow(provider string) bool {
	return r.Limiter(provider).Allow()
}
