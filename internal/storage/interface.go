// Package storage is the persistence layer of the control plane. It owns the
// nonce ledger used for replay protection, the per-company dead-letter
// queue state read by the admin surface, feature flags and user roles.
//
// Two adapters implement Storage: sqlite (embedded, the default) and
// postgres (pgx connection pool). Both register themselves with the
// DefaultRegistry from an init function, so callers import them for side
// effects and build a store with NewStorage:
//
//	import (
//		"transbot-ops/internal/storage"
//		_ "transbot-ops/internal/storage/postgres"
//		_ "transbot-ops/internal/storage/sqlite"
//	)
//
//	store, err := storage.NewStorage(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
// Adapters create their tables on start-up. Schema migration management
// beyond that bootstrap lives outside this service.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrDuplicateNonce is returned by InsertNonce when the (key id, nonce)
	// pair already exists.
	ErrDuplicateNonce = errors.New("nonce already recorded")
	// ErrNotFound is returned when a single row lookup finds nothing.
	ErrNotFound = errors.New("record not found")
)

// DLQ item statuses.
const (
	DLQStatusPending   = "pending"
	DLQStatusRetrying  = "retrying"
	DLQStatusDraining  = "draining"
	DLQStatusReplayed  = "replayed"
	DLQStatusAbandoned = "abandoned"
)

// Wildcards used by feature flag rows.
const (
	GlobalCompany  = ""
	AnyEnvironment = "*"
)

type Storage interface {
	Close() error
	Health(ctx context.Context) error

	// Nonce ledger. InsertNonce is a single atomic insert and returns
	// ErrDuplicateNonce on a unique violation.
	InsertNonce(ctx context.Context, rec *NonceRecord) error
	DeleteNoncesBefore(ctx context.Context, before time.Time) (int64, error)

	// Dead-letter queue, scoped per company
	CreateDLQItem(ctx context.Context, item *DLQItem) error
	ListDLQItems(ctx context.Context, filter DLQFilter) ([]*DLQItem, error)
	DrainCompanyDLQ(ctx context.Context, companyID string) (int64, error)
	SetCompanyPaused(ctx context.Context, companyID string, paused bool) error
	GetCompanyQueueState(ctx context.Context, companyID string) (*CompanyQueueState, error)

	// Feature flags. FindFeatureFlags returns every row that could apply to
	// the company and environment: exact matches plus the global company and
	// the any-environment wildcard.
	UpsertFeatureFlag(ctx context.Context, flag *FeatureFlag) error
	FindFeatureFlags(ctx context.Context, companyID, environment, key string) ([]*FeatureFlag, error)

	// Roles
	SetUserRole(ctx context.Context, userID, role string) error
	GetUserRole(ctx context.Context, userID string) (string, error)
}

type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

type StorageFactory interface {
	Create(config StorageConfig) (Storage, error)
	GetType() string
}

// NonceRecord is one row of the replay ledger. Rows are written once and
// never updated.
type NonceRecord struct {
	KeyID      string    `json:"key_id"`
	Nonce      string    `json:"nonce"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	InsertedAt time.Time `json:"inserted_at"`
}

// DLQItem is a dead-lettered work item. The admin surface passes it through
// without interpreting the payload.
type DLQItem struct {
	ID           string          `json:"id"`
	CompanyID    string          `json:"company_id"`
	Source       string          `json:"source"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type DLQFilter struct {
	CompanyID string
	Status    string
	Limit     int
}

type CompanyQueueState struct {
	CompanyID string    `json:"company_id"`
	Paused    bool      `json:"paused"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeatureFlag is a boolean toggle. CompanyID GlobalCompany applies to every
// company and Environment AnyEnvironment applies to every environment.
type FeatureFlag struct {
	CompanyID   string `json:"company_id"`
	Environment string `json:"environment"`
	Key         string `json:"key"`
	Enabled     bool   `json:"enabled"`
}

// GenericConfig is a simple map-based implementation of StorageConfig
type GenericConfig map[string]interface{}

func (gc GenericConfig) Validate() error {
	return nil
}

func (gc GenericConfig) GetType() string {
	if t, ok := gc["type"].(string); ok {
		return t
	}
	return "unknown"
}

func (gc GenericConfig) GetConnectionString() string {
	if cs, ok := gc["connection_string"].(string); ok {
		return cs
	}
	return ""
}

// String returns the value stored under key, or "".
func (gc GenericConfig) String(key string) string {
	v, _ := gc[key].(string)
	return v
}
