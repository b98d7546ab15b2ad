package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// distributedLimiter implements Redis-backed distributed rate limiting
type distributedLimiter struct {
	config      Config
	redisClient RedisInterface
}

// NewDistributedLimiter creates a limiter whose counters live in redis.
func NewDistributedLimiter(config Config, redisClient RedisInterface) (Limiter, error) {
	if config.Type == "" {
		config.Type = BackendDistributed
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required for distributed rate limiter")
	}

	return &distributedLimiter{
		config:      config,
		redisClient: redisClient,
	}, nil
}

func (rl *distributedLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !rl.config.Enabled {
		return Decision{Allowed: true, Limit: rl.config.MaxRequests, Remaining: rl.config.MaxRequests}, nil
	}

	allowed, count, err := rl.redisClient.CheckRateLimit(ctx, rl.config.KeyPrefix+key, rl.config.MaxRequests, rl.config.Window)
	if err != nil {
		return Decision{}, err
	}

	remaining := rl.config.MaxRequests - count - 1
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   allowed,
		Limit:     rl.config.MaxRequests,
		Remaining: remaining,
		ResetAt:   time.Now().Add(rl.config.Window),
	}, nil
}

func (rl *distributedLimiter) Health(ctx context.Context) error {
	return rl.redisClient.Health(ctx)
}
