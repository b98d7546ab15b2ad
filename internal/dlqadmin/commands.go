package dlqadmin

import (
	"context"
	"net/http"

	"transbot-ops/internal/storage"
)

// Command is one admin action. The set is closed: execute is unexported,
// so only this package can add commands and each must implement it.
type Command interface {
	Action() string
	CompanyID() string
	execute(ctx context.Context, c *Controller) (Outcome, error)
}

type ListCommand struct {
	Company string
	Limit   int
	Status  string
}

func (ListCommand) Action() string      { return ActionList }
func (c ListCommand) CompanyID() string { return c.Company }

func (cmd ListCommand) execute(ctx context.Context, c *Controller) (Outcome, error) {
	items, err := c.store.ListDLQItems(ctx, storage.DLQFilter{
		CompanyID: cmd.Company,
		Status:    cmd.Status,
		Limit:     cmd.Limit,
	})
	if err != nil {
		return Outcome{}, dataError(err)
	}
	if items == nil {
		items = []*storage.DLQItem{}
	}
	return jsonOutcome(http.StatusOK, map[string]interface{}{"ok": true, "items": items}), nil
}

// StateCommand reports whether the company's queue is paused.
type StateCommand struct {
	Company string
}

func (StateCommand) Action() string      { return ActionState }
func (c StateCommand) CompanyID() string { return c.Company }

func (cmd StateCommand) execute(ctx context.Context, c *Controller) (Outcome, error) {
	state, err := c.store.GetCompanyQueueState(ctx, cmd.Company)
	if err != nil {
		return Outcome{}, dataError(err)
	}
	return jsonOutcome(http.StatusOK, map[string]interface{}{
		"ok":         true,
		"company_id": cmd.Company,
		"paused":     state.Paused,
		"updated_at": state.UpdatedAt,
	}), nil
}

type PauseCommand struct {
	Company string
}

func (PauseCommand) Action() string      { return ActionPause }
func (c PauseCommand) CompanyID() string { return c.Company }

func (cmd PauseCommand) execute(ctx context.Context, c *Controller) (Outcome, error) {
	return c.setPaused(ctx, cmd.Company, true)
}

type UnpauseCommand struct {
	Company string
}

func (UnpauseCommand) Action() string      { return ActionUnpause }
func (c UnpauseCommand) CompanyID() string { return c.Company }

func (cmd UnpauseCommand) execute(ctx context.Context, c *Controller) (Outcome, error) {
	return c.setPaused(ctx, cmd.Company, false)
}

// DrainCommand marks the company's pending items for the external worker.
type DrainCommand struct {
	Company string
}

func (DrainCommand) Action() string      { return ActionDrain }
func (c DrainCommand) CompanyID() string { return c.Company }

func (cmd DrainCommand) execute(ctx context.Context, c *Controller) (Outcome, error) {
	drained, err := c.store.DrainCompanyDLQ(ctx, cmd.Company)
	if err != nil {
		return Outcome{}, dataError(err)
	}
	return jsonOutcome(http.StatusOK, map[string]interface{}{
		"ok":         true,
		"company_id": cmd.Company,
		"drained":    drained,
	}), nil
}

// ReplayCommand asks the replay worker to re-process items. DryRun covers
// both the replay action with dry_run set and the dry_run action.
type ReplayCommand struct {
	Company string
	IDs     []string
	Max     int
	DryRun  bool
}

func (c ReplayCommand) Action() string {
	if c.DryRun {
		return ActionDryRun
	}
	return ActionReplay
}
func (c ReplayCommand) CompanyID() string { return c.Company }

func (cmd ReplayCommand) execute(ctx context.Context, c *Controller) (Outcome, error) {
	if c.replayer == nil {
		return Outcome{}, errReplayNotConfigured
	}

	resp, err := c.replayer.Replay(ctx, ReplayRequest{
		CompanyID: cmd.Company,
		Max:       cmd.Max,
		DryRun:    cmd.DryRun,
		DLQIDs:    cmd.IDs,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        resp.Body,
	}, nil
}
