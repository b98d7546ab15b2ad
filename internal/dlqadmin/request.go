package dlqadmin

import (
	"strings"

	apperrors "transbot-ops/internal/common/errors"
)

// Actions understood on the wire.
const (
	ActionList    = "list"
	ActionState   = "state"
	ActionPause   = "pause"
	ActionUnpause = "unpause"
	ActionDrain   = "drain"
	ActionReplay  = "replay"
	ActionDryRun  = "dry_run"
)

// Limits applied to list and replay.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
	DefaultReplayMax = 50
	MaxReplayMax     = 1000
)

// Error codes returned in the "error" field of a 4xx/5xx body.
const (
	CodeCompanyRequired           = "company_id_required"
	CodeUnknownAction             = "unknown_action"
	CodeInvalidJSON               = "invalid_json"
	CodeReplayWorkerNotConfigured = "replay_worker_not_configured"
)

// Request is the decoded form of a GET query or POST body. Pointer fields
// distinguish "absent" from zero.
type Request struct {
	Action    string   `json:"action"`
	CompanyID string   `json:"company_id"`
	IDs       []string `json:"ids,omitempty"`
	Max       *int     `json:"max,omitempty"`
	DryRun    bool     `json:"dry_run,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
	Status    string   `json:"status,omitempty"`
}

// DecodeCommand is the only place the action string is interpreted. A
// missing company id is rejected before the action is looked at.
func DecodeCommand(req Request) (Command, error) {
	company := strings.TrimSpace(req.CompanyID)
	if company == "" {
		return nil, apperrors.ValidationError("company_id is required").WithCode(CodeCompanyRequired)
	}

	action := strings.TrimSpace(req.Action)
	switch action {
	case ActionList:
		return ListCommand{
			Company: company,
			Limit:   clamp(req.Limit, DefaultListLimit, MaxListLimit),
			Status:  strings.TrimSpace(req.Status),
		}, nil
	case ActionState:
		return StateCommand{Company: company}, nil
	case ActionPause:
		return PauseCommand{Company: company}, nil
	case ActionUnpause:
		return UnpauseCommand{Company: company}, nil
	case ActionDrain:
		return DrainCommand{Company: company}, nil
	case ActionReplay, ActionDryRun:
		return ReplayCommand{
			Company: company,
			IDs:     compactIDs(req.IDs),
			Max:     clamp(req.Max, DefaultReplayMax, MaxReplayMax),
			DryRun:  req.DryRun || action == ActionDryRun,
		}, nil
	default:
		return nil, UnknownAction(req.Action)
	}
}

// UnknownAction is the error for an action outside the command set.
func UnknownAction(action string) error {
	return apperrors.ValidationError("unknown action").
		WithCode(CodeUnknownAction).
		WithContext("action", action)
}

func clamp(v *int, def, max int) int {
	if v == nil {
		return def
	}
	switch {
	case *v < 1:
		return 1
	case *v > max:
		return max
	default:
		return *v
	}
}

func compactIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
