package app

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "transbot-ops/docs"
	"transbot-ops/internal/common/ratelimit"
	"transbot-ops/internal/handlers"
	"transbot-ops/internal/middleware"
	"transbot-ops/internal/signature"
)

// SetupRoutes configures all HTTP routes for the application
func (app *App) SetupRoutes(router *mux.Router, h *handlers.Handlers) {
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(app.Metrics))

	// Health, metrics and API docs (no auth required)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.Handle("/metrics", app.Metrics.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Signed service-to-service calls
	internal := router.PathPrefix("/internal").Subrouter()
	internal.Use(signature.Middleware(app.Verifier))
	internal.HandleFunc("/verify", h.VerifyInternal).Methods(http.MethodPost)

	// DLQ admin: rate limited per client, then super_admin only
	dlq := router.Path("/dlq-admin").Subrouter()
	if app.RateLimiter != nil {
		dlq.Use(ratelimit.HTTPMiddleware(app.RateLimiter, ratelimit.IPKey, app.Logger))
	}
	dlq.Use(app.AdminGuard.Middleware)
	dlq.Methods(http.MethodGet).HandlerFunc(h.GetDLQAdmin)
	dlq.Methods(http.MethodPost).HandlerFunc(h.PostDLQAdmin)
}

// Handler builds the full HTTP handler.
func (app *App) Handler() http.Handler {
	checks := map[string]handlers.HealthChecker{"storage": app.Storage}
	if app.RedisClient != nil {
		checks["redis"] = app.RedisClient
	}

	h := handlers.New(app.Controller, checks, app.Logger)
	router := mux.NewRouter()
	app.SetupRoutes(router, h)
	return router
}
