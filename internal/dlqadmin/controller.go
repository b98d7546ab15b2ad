// Package dlqadmin is the privileged control plane for dead-lettered work.
// Requests decode into a closed set of commands; each command executes
// against storage or the replay worker and yields a complete HTTP outcome.
package dlqadmin

import (
	"context"
	"net/http"

	"transbot-ops/internal/admin"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/storage"
)

// Store is the slice of storage.Storage the controller uses.
type Store interface {
	ListDLQItems(ctx context.Context, filter storage.DLQFilter) ([]*storage.DLQItem, error)
	DrainCompanyDLQ(ctx context.Context, companyID string) (int64, error)
	SetCompanyPaused(ctx context.Context, companyID string, paused bool) error
	GetCompanyQueueState(ctx context.Context, companyID string) (*storage.CompanyQueueState, error)
}

// ActionRecorder counts executed actions by final status.
type ActionRecorder interface {
	ObserveAdminAction(action string, status int)
}

type Controller struct {
	store    Store
	replayer Replayer
	recorder ActionRecorder
	logger   logging.Logger
}

// NewController wires the controller. replayer may be nil, in which case
// replay and dry_run answer 503.
func NewController(store Store, replayer Replayer, recorder ActionRecorder, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Controller{
		store:    store,
		replayer: replayer,
		recorder: recorder,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "dlq_admin"}),
	}
}

// Handle decodes and executes req on behalf of principal.
func (c *Controller) Handle(ctx context.Context, principal *admin.Principal, req Request) Outcome {
	cmd, err := DecodeCommand(req)
	if err != nil {
		outcome := ErrorOutcome(err)
		c.audit(ctx, principal, req.Action, req.CompanyID, outcome.StatusCode, err)
		return outcome
	}
	return c.Execute(ctx, principal, cmd)
}

// Execute runs a decoded command. Every execution is audit-logged.
func (c *Controller) Execute(ctx context.Context, principal *admin.Principal, cmd Command) Outcome {
	outcome, err := cmd.execute(ctx, c)
	if err != nil {
		outcome = ErrorOutcome(err)
	}
	c.audit(ctx, principal, cmd.Action(), cmd.CompanyID(), outcome.StatusCode, err)
	return outcome
}

func (c *Controller) setPaused(ctx context.Context, companyID string, paused bool) (Outcome, error) {
	if err := c.store.SetCompanyPaused(ctx, companyID, paused); err != nil {
		return Outcome{}, dataError(err)
	}
	return jsonOutcome(http.StatusOK, map[string]interface{}{
		"ok":         true,
		"company_id": companyID,
		"paused":     paused,
	}), nil
}

func (c *Controller) audit(ctx context.Context, principal *admin.Principal, action, companyID string, status int, err error) {
	if c.recorder != nil {
		c.recorder.ObserveAdminAction(action, status)
	}

	fields := []logging.Field{
		{Key: "action", Value: action},
		{Key: "company_id", Value: companyID},
		{Key: "status", Value: status},
	}
	if principal != nil {
		fields = append(fields, logging.Field{Key: "actor", Value: principal.UserID})
	}

	logger := c.logger.WithContext(ctx)
	switch {
	case status >= http.StatusInternalServerError && err != nil:
		logger.Error("DLQ admin action failed", err, fields...)
	case err != nil:
		logger.Warn("DLQ admin action rejected", append(fields, logging.Err(err))...)
	default:
		logger.Info("DLQ admin action", fields...)
	}
}
