package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localLimiter implements rate limiting using golang.org/x/time/rate
type localLimiter struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*limiterEntry
	now      func() time.Time

	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewLocalLimiter creates an in-memory limiter. Each key refills at
// MaxRequests per Window with a burst of MaxRequests.
func NewLocalLimiter(config Config) (Limiter, error) {
	if config.Type == "" {
		config.Type = BackendLocal
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &localLimiter{
		config:      config,
		limiters:    make(map[string]*limiterEntry),
		now:         time.Now,
		lastCleanup: time.Now(),
	}, nil
}

func (rl *localLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if !rl.config.Enabled {
		return Decision{Allowed: true, Limit: rl.config.MaxRequests, Remaining: rl.config.MaxRequests}, nil
	}

	now := rl.now()
	limiter := rl.getLimiterForKey(key, now)
	allowed := limiter.AllowN(now, 1)

	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   allowed,
		Limit:     rl.config.MaxRequests,
		Remaining: remaining,
		ResetAt:   now.Add(rl.config.Window),
	}, nil
}

// Health always succeeds for the in-memory backend.
func (rl *localLimiter) Health(context.Context) error {
	return nil
}

func (rl *localLimiter) getLimiterForKey(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) > rl.config.CleanupPeriod {
		rl.cleanup(now)
	}

	entry, exists := rl.limiters[key]
	if !exists {
		every := rl.config.Window / time.Duration(rl.config.MaxRequests)
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(every), rl.config.MaxRequests)}
		rl.limiters[key] = entry

		if len(rl.limiters) > rl.config.MaxKeys {
			rl.cleanup(now)
		}
	}
	entry.lastUsed = now

	return entry.limiter
}

// cleanup drops limiters idle for longer than CleanupPeriod.
func (rl *localLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.config.CleanupPeriod)

	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}

	rl.lastCleanup = now
}
