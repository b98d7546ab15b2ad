package app

import (
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/common/ratelimit"
)

// initializeRateLimiter uses redis when connected and a per-process limiter
// otherwise.
func (app *App) initializeRateLimiter() error {
	if !app.Config.RateLimitEnabled {
		app.Logger.Info("Rate Limiting: Disabled")
		return nil
	}

	rateLimitConfig := ratelimit.Config{
		Enabled:     true,
		MaxRequests: app.Config.RateLimitDefault,
		Window:      app.Config.RateLimitWindow,
		KeyPrefix:   "transbot:",
	}

	var backend ratelimit.RedisInterface
	if app.RedisClient != nil {
		backend = app.RedisClient
	}

	limiter, err := ratelimit.New(rateLimitConfig, backend)
	if err != nil {
		return err
	}

	app.RateLimiter = limiter
	app.Logger.Info("Rate Limiting: Enabled",
		logging.Field{Key: "limit", Value: rateLimitConfig.MaxRequests},
		logging.Field{Key: "window", Value: rateLimitConfig.Window.String()},
		logging.Field{Key: "distributed", Value: backend != nil},
	)
	return nil
}
