package app

import (
	"context"

	"transbot-ops/internal/server"
)

// RunServer starts background work and the HTTP server.
func (app *App) RunServer() (*server.Server, error) {
	srv := server.New(app.Handler(), app.Config.Port, "", "", app.Logger)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	app.Start()
	return srv, nil
}

// Shutdown stops the server and then releases every dependency.
func (app *App) Shutdown(ctx context.Context, srv *server.Server) error {
	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	app.Cleanup()
	return err
}
