// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
)

// storeCleanup is how often idle buckets are swept from memory.
const storeCleanup = time.Minute

// Limiter is a per-key token bucket. Each key gets its own bucket with the
// configured rate and burst. It is safe for concurrent use.
type Limiter struct {
	bucket *limiter.TokenBucket
	rate   int
	burst  int
}

// NewLimiter creates a limiter allowing perMinute requests per minute per
// key, with up to burst requests at once.
func NewLimiter(perMinute, burst int) (*Limiter, error) {
	if perMinute <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rate and burst must be positive, got %d/min burst %d", perMinute, burst)
	}

	tb, err := limiter.NewTokenBucket(
		limiter.Config{
			Rate:     int64(perMinute),
			Duration: time.Minute,
			Burst:    int64(burst),
		},
		store.NewMemoryStore(storeCleanup),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token bucket: %w", err)
	}
	return &Limiter{bucket: tb, rate: perMinute, burst: burst}, nil
}

// Allow reports whether a request for key may proceed, consuming a token
// when it may.
func (l *Limiter) Allow(key string) bool {
	return l.bucket.Allow(key)
}

// String describes the limit, e.g. "10/min burst 3".
func (l *Limiter) String() string {
	return fmt.Sprintf("%d/min burst %d", l.rate, l.burst)
}

// Limit is a per-minute allowance with a burst size.
type Limit struct {
	PerMinute int
	Burst     int
}

// DefaultLimits returns the per-tool limits. They are generous enough for
// normal usage but keep a client from running simulations in a tight loop.
func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		"evolab_simulate":  {PerMinute: 10, Burst: 3},
		"evolab_agents":    {PerMinute: 60, Burst: 10},
		"evolab_analyze":   {PerMinute: 30, Burst: 5},
		"evolab_feedback":  {PerMinute: 30, Burst: 5},
		"evolab_rate":      {PerMinute: 30, Burst: 5},
		"evolab_integrate": {PerMinute: 10, Burst: 3},
		"evolab_runs":      {PerMinute: 60, Burst: 10},
	}
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates limiters from DefaultLimits with overrides
// applied by tool name.
func NewToolLimiters(overrides map[string]Limit) (ToolLimiters, error) {
	limits := DefaultLimits()
	for tool, l := range overrides {
		limits[tool] = l
	}

	limiters := make(ToolLimiters, len(limits))
	for tool, l := range limits {
		lim, err := NewLimiter(l.PerMinute, l.Burst)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tool, err)
		}
		limiters[tool] = lim
	}
	return limiters, nil
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	l, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !l.Allow(toolName) {
		return fmt.Errorf("rate limit exceeded for %s (%s), please try again shortly", toolName, l)
	}
	return nil
}
