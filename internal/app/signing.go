package app

import (
	"transbot-ops/internal/common/cache"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/dlqadmin"
	"transbot-ops/internal/flags"
	"transbot-ops/internal/signature"
)

// initializeSigning builds the inbound verifier and, when a replay worker
// is configured, the signed outbound client.
func (app *App) initializeSigning() error {
	keyTable, err := app.Config.SigningKeyTable()
	if err != nil {
		return err
	}
	keys := signature.NewStaticKeys(keyTable)
	if len(keyTable) == 0 {
		app.Logger.Warn("No signing keys configured; every signed request will be rejected")
	}

	app.Flags = flags.NewGate(app.Storage, app.Config.FlagEnvironment, app.Logger)
	if ttl := app.Config.FlagCacheTTL; ttl > 0 {
		app.Flags.WithCache(cache.NewLocalCache(ttl, 2*ttl))
	}
	app.Verifier = signature.NewVerifier(signature.VerifierConfig{
		Keys:        keys,
		Nonces:      app.Guard,
		Flags:       app.Flags,
		Recorder:    app.Metrics,
		SkewSeconds: app.Config.SkewSeconds,
	}, app.Logger)

	app.Logger.Info("Request signing configured",
		logging.Field{Key: "key_ids", Value: keys.IDs()},
		logging.Field{Key: "skew_seconds", Value: app.Config.SkewSeconds},
	)

	if app.Config.ReplayWorkerURL == "" {
		app.Logger.Info("Replay worker: Not configured (replay and dry_run answer 503)")
		return nil
	}

	replayer, err := dlqadmin.NewReplayClient(dlqadmin.ReplayClientConfig{
		URL:      app.Config.ReplayWorkerURL,
		Timeout:  app.Config.ReplayWorkerTimeout,
		Signer:   signature.NewSigner(app.Config.SigningKeyID, []byte(app.Config.SigningSecret)),
		Recorder: app.Metrics,
	}, app.Logger)
	if err != nil {
		return err
	}
	app.Replayer = replayer
	app.Logger.Info("Replay worker configured", logging.Field{Key: "url", Value: app.Config.ReplayWorkerURL})
	return nil
}
