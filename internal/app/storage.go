package app

import (
	"context"
	"fmt"
	"time"

	"transbot-ops/internal/common/errors"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/common/utils"
	"transbot-ops/internal/config"
	"transbot-ops/internal/locks"
	"transbot-ops/internal/replayguard"
	"transbot-ops/internal/storage"
	_ "transbot-ops/internal/storage/postgres"
	_ "transbot-ops/internal/storage/sqlite"
)

func (app *App) initializeStorage() error {
	if app.Config.UsesPostgres() {
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "port", Value: app.Config.PostgresPort},
			logging.Field{Key: "database", Value: app.Config.PostgresDB},
		)
	} else {
		app.Logger.Info("Database: SQLite", logging.Field{Key: "path", Value: app.Config.DatabasePath})
	}

	// the database may still be starting when the service comes up
	retry := utils.DefaultRetryConfig()
	retry.RetryableErrors = func(err error) bool {
		return !errors.IsType(err, errors.ErrTypeConfig)
	}
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		app.Logger.Warn("Database not ready, retrying",
			logging.Field{Key: "attempt", Value: attempt},
			logging.Duration("wait", wait),
			logging.Err(err),
		)
	}

	var store storage.Storage
	err := utils.RetryWithBackoff(context.Background(), retry, func() error {
		var err error
		store, err = storage.NewStorage(app.Config)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Storage = store
	return nil
}

// initializeNonceLedger picks the nonce store and schedules pruning. Redis
// keys expire on their own, so the redis ledger has no pruner.
func (app *App) initializeNonceLedger() error {
	var store replayguard.Store
	switch app.Config.NonceStore {
	case config.NonceStoreRedis:
		if app.RedisClient == nil {
			return fmt.Errorf("NONCE_STORE=redis but redis is not connected")
		}
		store = replayguard.NewRedisStore(app.RedisClient, app.Config.NonceRetention)
	case config.NonceStoreMemory:
		app.Logger.Warn("Nonce ledger is process-local; replays across replicas are not detected")
		store = replayguard.NewMemoryStore()
	default:
		store = app.Storage
	}
	app.Guard = replayguard.New(store, nil)

	app.Logger.Info("Nonce ledger configured",
		logging.Field{Key: "store", Value: app.Config.NonceStore},
		logging.Field{Key: "retention", Value: app.Config.NonceRetention.String()},
	)

	if app.Config.NonceStore == config.NonceStoreRedis {
		return nil
	}

	var locker replayguard.Locker
	if app.RedisClient != nil {
		redsyncLocker, err := locks.NewRedsyncLocker(app.RedisClient)
		if err != nil {
			return err
		}
		app.Locker = redsyncLocker
		locker = redsyncLocker
	}

	pruner, err := replayguard.NewPruner(app.Guard, replayguard.PrunerConfig{
		Schedule:  app.Config.NoncePruneSchedule,
		Retention: app.Config.NonceRetention,
	}, locker, app.Metrics, app.Logger)
	if err != nil {
		return err
	}
	app.Pruner = pruner
	return nil
}
