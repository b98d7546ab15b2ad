package dlqadmin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "transbot-ops/internal/common/errors"
)

func intPtr(v int) *int { return &v }

func TestDecodeCommand_CompanyRequired(t *testing.T) {
	for _, action := range []string{ActionList, ActionState, ActionPause, ActionUnpause, ActionDrain, ActionReplay, ActionDryRun, "explode"} {
		_, err := DecodeCommand(Request{Action: action, CompanyID: "  "})
		require.Error(t, err, action)

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, CodeCompanyRequired, appErr.PublicMessage())
		assert.Equal(t, 400, apperrors.HTTPStatus(err))
	}
}

func TestDecodeCommand_UnknownAction(t *testing.T) {
	for _, action := range []string{"", "LIST", "purge", "replay "} {
		_, err := DecodeCommand(Request{Action: action, CompanyID: "acme"})
		if action == "replay " {
			assert.NoError(t, err, "surrounding whitespace is ignored")
			continue
		}
		require.Error(t, err, action)
		appErr, _ := apperrors.As(err)
		assert.Equal(t, CodeUnknownAction, appErr.PublicMessage())
		assert.Equal(t, 400, apperrors.HTTPStatus(err))
	}
}

func TestDecodeCommand_List(t *testing.T) {
	tests := []struct {
		name  string
		limit *int
		want  int
	}{
		{"default", nil, 50},
		{"in range", intPtr(120), 120},
		{"zero clamps up", intPtr(0), 1},
		{"negative clamps up", intPtr(-5), 1},
		{"too large clamps down", intPtr(501), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeCommand(Request{Action: "list", CompanyID: "acme", Limit: tt.limit, Status: "pending"})
			require.NoError(t, err)
			assert.Equal(t, ListCommand{Company: "acme", Limit: tt.want, Status: "pending"}, cmd)
		})
	}
}

func TestDecodeCommand_Replay(t *testing.T) {
	cmd, err := DecodeCommand(Request{Action: "replay", CompanyID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, ReplayCommand{Company: "acme", Max: 50}, cmd)
	assert.Equal(t, ActionReplay, cmd.Action())

	cmd, err = DecodeCommand(Request{Action: "replay", CompanyID: "acme", Max: intPtr(5000), DryRun: true, IDs: []string{"a", " ", "b "}})
	require.NoError(t, err)
	assert.Equal(t, ReplayCommand{Company: "acme", Max: 1000, DryRun: true, IDs: []string{"a", "b"}}, cmd)
	assert.Equal(t, ActionDryRun, cmd.Action())

	cmd, err = DecodeCommand(Request{Action: "dry_run", CompanyID: "acme", Max: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, ReplayCommand{Company: "acme", Max: 1, DryRun: true}, cmd)
}

func TestDecodeCommand_Simple(t *testing.T) {
	tests := map[string]Command{
		ActionState:   StateCommand{Company: "acme"},
		ActionPause:   PauseCommand{Company: "acme"},
		ActionUnpause: UnpauseCommand{Company: "acme"},
		ActionDrain:   DrainCommand{Company: "acme"},
	}

	for action, want := range tests {
		cmd, err := DecodeCommand(Request{Action: action, CompanyID: " acme "})
		require.NoError(t, err)
		assert.Equal(t, want, cmd)
		assert.Equal(t, action, cmd.Action())
		assert.Equal(t, "acme", cmd.CompanyID())
	}
}
