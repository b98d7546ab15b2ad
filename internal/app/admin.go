package app

import (
	"transbot-ops/internal/admin"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/config"
	"transbot-ops/internal/dlqadmin"
)

func (app *App) initializeAdmin() error {
	var identity admin.IdentityProvider
	switch app.Config.AuthMode {
	case config.AuthModeRemote:
		identity = admin.NewRemoteIdentityProvider(app.Config.IdentityURL, 0)
	default:
		provider, err := admin.NewJWTIdentityProvider(app.Config.AuthJWTSecret)
		if err != nil {
			return err
		}
		identity = provider
	}

	app.AdminGuard = admin.NewGuard(identity, app.Storage, app.Logger)

	// a nil *ReplayClient must reach the controller as a nil interface
	var replayer dlqadmin.Replayer
	if app.Replayer != nil {
		replayer = app.Replayer
	}
	app.Controller = dlqadmin.NewController(app.Storage, replayer, app.Metrics, app.Logger)

	app.Logger.Info("Admin control plane configured", logging.Field{Key: "auth_mode", Value: app.Config.AuthMode})
	return nil
}
