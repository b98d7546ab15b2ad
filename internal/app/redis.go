package app

import (
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/config"
	"transbot-ops/internal/redis"
)

// initializeRedis connects when REDIS_ADDRESS is set. A failed connection is
// only fatal when the nonce ledger lives in redis.
func (app *App) initializeRedis() error {
	if !app.Config.RedisEnabled() {
		app.Logger.Info("Redis: Not configured (local rate limiting, no prune lock)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		if app.Config.NonceStore == config.NonceStoreRedis {
			return err
		}
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
		return nil
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	return nil
}
