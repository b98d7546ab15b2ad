package flags

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"transbot-ops/internal/common/cache"
	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/storage"
	"transbot-ops/internal/storage/sqlite"
)

type mockFinder struct {
	mock.Mock
}

func (m *mockFinder) FindFeatureFlags(ctx context.Context, companyID, environment, key string) ([]*storage.FeatureFlag, error) {
	args := m.Called(ctx, companyID, environment, key)
	if rows := args.Get(0); rows != nil {
		return rows.([]*storage.FeatureFlag), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestGate_MostSpecificWins(t *testing.T) {
	global := &storage.FeatureFlag{CompanyID: "", Environment: "*", Key: "k", Enabled: true}
	globalProd := &storage.FeatureFlag{CompanyID: "", Environment: "production", Key: "k", Enabled: false}
	companyAny := &storage.FeatureFlag{CompanyID: "acme", Environment: "*", Key: "k", Enabled: true}
	companyProd := &storage.FeatureFlag{CompanyID: "acme", Environment: "production", Key: "k", Enabled: false}

	tests := []struct {
		name string
		rows []*storage.FeatureFlag
		want bool
	}{
		{"no rows", nil, false},
		{"global only", []*storage.FeatureFlag{global}, true},
		{"global env beats global any", []*storage.FeatureFlag{global, globalProd}, false},
		{"company any beats global env", []*storage.FeatureFlag{globalProd, companyAny}, true},
		{"company env beats everything", []*storage.FeatureFlag{companyProd, global, companyAny, globalProd}, false},
		{"foreign rows ignored", []*storage.FeatureFlag{
			{CompanyID: "globex", Environment: "*", Key: "k", Enabled: true},
			{CompanyID: "", Environment: "staging", Key: "k", Enabled: true},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finder := &mockFinder{}
			finder.On("FindFeatureFlags", mock.Anything, "acme", "production", "k").Return(tt.rows, nil)

			gate := NewGate(finder, "production", logging.NewNopLogger())
			assert.Equal(t, tt.want, gate.Enabled(context.Background(), "acme", "k"))
			finder.AssertExpectations(t)
		})
	}
}

func TestGate_FailsOpen(t *testing.T) {
	finder := &mockFinder{}
	finder.On("FindFeatureFlags", mock.Anything, "acme", "production", RequireSignedInternalCalls).
		Return(nil, errors.New("relation feature_flags does not exist"))

	gate := NewGate(finder, "production", logging.NewNopLogger())
	assert.False(t, gate.Required(context.Background(), "acme", RequireSignedInternalCalls))
}

func TestGate_WithSQLiteStore(t *testing.T) {
	store, err := sqlite.NewAdapter(&sqlite.Config{DatabasePath: ":memory:"})
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.UpsertFeatureFlag(ctx, &storage.FeatureFlag{Key: RequireSignedInternalCalls, Enabled: true}))
	require.NoError(t, store.UpsertFeatureFlag(ctx, &storage.FeatureFlag{CompanyID: "acme", Environment: "production", Key: RequireSignedInternalCalls, Enabled: false}))

	gate := NewGate(store, "production", logging.NewNopLogger())
	assert.False(t, gate.Required(ctx, "acme", RequireSignedInternalCalls))
	assert.True(t, gate.Required(ctx, "globex", RequireSignedInternalCalls))

	staging := NewGate(store, "staging", logging.NewNopLogger())
	assert.True(t, staging.Required(ctx, "acme", RequireSignedInternalCalls))
}

func TestGate_CachesResolvedValues(t *testing.T) {
	finder := &mockFinder{}
	finder.On("FindFeatureFlags", mock.Anything, "acme", "production", "k").
		Return([]*storage.FeatureFlag{{CompanyID: "acme", Environment: "*", Key: "k", Enabled: true}}, nil).Once()
	finder.On("FindFeatureFlags", mock.Anything, "globex", "production", "k").
		Return(nil, errors.New("db down")).Twice()

	gate := NewGate(finder, "production", logging.NewNopLogger()).
		WithCache(cache.NewLocalCache(time.Minute, time.Minute))
	ctx := context.Background()

	assert.True(t, gate.Enabled(ctx, "acme", "k"))
	assert.True(t, gate.Enabled(ctx, "acme", "k"))

	// failures are retried rather than cached
	assert.False(t, gate.Enabled(ctx, "globex", "k"))
	assert.False(t, gate.Enabled(ctx, "globex", "k"))

	finder.AssertExpectations(t)
}
