package app

import (
	"fmt"

	"transbot-ops/internal/admin"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/common/ratelimit"
	"transbot-ops/internal/config"
	"transbot-ops/internal/dlqadmin"
	"transbot-ops/internal/flags"
	"transbot-ops/internal/locks"
	"transbot-ops/internal/metrics"
	"transbot-ops/internal/redis"
	"transbot-ops/internal/replayguard"
	"transbot-ops/internal/signature"
	"transbot-ops/internal/storage"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	Locker      *locks.RedsyncLocker
	Metrics     *metrics.Metrics
	Logger      logging.Logger

	Guard       *replayguard.Guard
	Pruner      *replayguard.Pruner
	Flags       *flags.Gate
	Verifier    *signature.Verifier
	AdminGuard  *admin.Guard
	Replayer    *dlqadmin.ReplayClient
	Controller  *dlqadmin.Controller
	RateLimiter ratelimit.Limiter
}

// New creates a new application instance with all dependencies. The
// configuration must already be validated.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.New(),
		Logger:  logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	// Initialize components in order of dependency
	steps := []struct {
		name string
		fn   func() error
	}{
		{"storage", app.initializeStorage},
		{"redis", app.initializeRedis},
		{"nonce ledger", app.initializeNonceLedger},
		{"signing", app.initializeSigning},
		{"admin", app.initializeAdmin},
		{"rate limiting", app.initializeRateLimiter},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			app.Cleanup()
			return nil, fmt.Errorf("initialize %s: %w", step.name, err)
		}
	}

	return app, nil
}

// Start begins background work.
func (app *App) Start() {
	if app.Pruner != nil {
		app.Pruner.Start()
	}
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Pruner != nil {
		app.Pruner.Stop()
	}
	if app.Locker != nil {
		if err := app.Locker.Close(); err != nil {
			app.Logger.Warn("Error closing lock provider", logging.Err(err))
		}
	}
	if app.Storage != nil {
		if err := app.Storage.Close(); err != nil {
			app.Logger.Warn("Error closing storage", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Error closing redis", logging.Err(err))
		}
	}
}
