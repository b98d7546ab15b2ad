// Package handlers holds the HTTP surface of the control plane.
//
// @title transbot-ops API
// @version 1.0
// @description Signed internal requests and the DLQ admin control plane.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey TransbotSignature
// @in header
// @name X-Transbot-Signature
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "transbot-ops/internal/common/errors"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/dlqadmin"
)

// HealthChecker is a dependency reported by /health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Handlers struct {
	controller *dlqadmin.Controller
	checks     map[string]HealthChecker
	logger     logging.Logger
}

// New creates the handler set. checks maps a dependency name to its health
// probe; nil entries are skipped.
func New(controller *dlqadmin.Controller, checks map[string]HealthChecker, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	active := make(map[string]HealthChecker, len(checks))
	for name, check := range checks {
		if check != nil {
			active[name] = check
		}
	}
	return &Handlers{
		controller: controller,
		checks:     active,
		logger:     logger.WithFields(logging.Field{Key: "component", Value: "handlers"}),
	}
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", logging.Err(err))
	}
}

func (h *Handlers) sendError(w http.ResponseWriter, err error) {
	message := "internal error"
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.PublicMessage()
	}
	h.sendJSON(w, apperrors.HTTPStatus(err), map[string]interface{}{"ok": false, "error": message})
}
