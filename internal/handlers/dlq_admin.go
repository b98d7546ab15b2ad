package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"transbot-ops/internal/admin"
	"transbot-ops/internal/dlqadmin"
)

const maxAdminBody = 1 << 20

// GetDLQAdmin lists a company's dead-lettered items or reports its pause state
// @Summary List DLQ items
// @Description Lists dead-lettered items for one company. action=state reports whether the queue is paused instead.
// @Tags dlq-admin
// @Produce json
// @Security BearerAuth
// @Param company_id query string true "Company ID"
// @Param limit query int false "Max items (default 50, clamped to 1..500)"
// @Param status query string false "Filter by status (pending, retrying, draining, replayed, abandoned)"
// @Param action query string false "list (default) or state"
// @Success 200 {object} map[string]interface{} "{ok: true, items: [...]}"
// @Failure 400 {object} map[string]interface{} "company_id_required or unknown_action"
// @Failure 403 {object} map[string]interface{} "not_authorized"
// @Failure 429 {object} map[string]interface{} "rate_limited"
// @Failure 500 {object} map[string]interface{} "storage error"
// @Router /dlq-admin [get]
func (h *Handlers) GetDLQAdmin(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := dlqadmin.Request{
		Action:    query.Get("action"),
		CompanyID: query.Get("company_id"),
		Status:    query.Get("status"),
	}
	switch req.Action {
	case "":
		req.Action = dlqadmin.ActionList
	case dlqadmin.ActionList, dlqadmin.ActionState:
	default:
		// mutating actions are POST only
		h.sendError(w, dlqadmin.UnknownAction(req.Action))
		return
	}

	// a non-numeric limit falls back to the default
	if raw := query.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			req.Limit = &limit
		}
	}

	principal, _ := admin.PrincipalFromContext(r.Context())
	h.controller.Handle(r.Context(), principal, req).WriteTo(w)
}

// PostDLQAdmin executes an admin action
// @Summary Execute a DLQ admin action
// @Description Runs list, state, pause, unpause, drain, replay or dry_run for one company. Replay responses are the worker's response relayed verbatim.
// @Tags dlq-admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dlqadmin.Request true "Action request"
// @Success 200 {object} map[string]interface{} "Action result"
// @Failure 400 {object} map[string]interface{} "company_id_required, unknown_action or invalid_json"
// @Failure 403 {object} map[string]interface{} "not_authorized"
// @Failure 429 {object} map[string]interface{} "rate_limited"
// @Failure 500 {object} map[string]interface{} "storage error"
// @Failure 502 {object} map[string]interface{} "replay worker unreachable"
// @Failure 503 {object} map[string]interface{} "replay_worker_not_configured"
// @Router /dlq-admin [post]
func (h *Handlers) PostDLQAdmin(w http.ResponseWriter, r *http.Request) {
	var req dlqadmin.Request
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAdminBody))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		h.sendError(w, dlqadmin.InvalidJSON(err))
		return
	}

	principal, _ := admin.PrincipalFromContext(r.Context())
	h.controller.Handle(r.Context(), principal, req).WriteTo(w)
}
