package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"transbot-ops/internal/storage"
)

const uniqueViolation = "23505"

type Adapter struct {
	pool   *pgxpool.Pool
	config *Config
}

var _ storage.Storage = (*Adapter)(nil)

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		pool:   pool,
		config: config,
	}

	if err := adapter.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *Adapter) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signature_nonces (
			key_id TEXT NOT NULL,
			nonce TEXT NOT NULL,
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (key_id, nonce)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signature_nonces_inserted_at ON signature_nonces (inserted_at)`,
		`CREATE TABLE IF NOT EXISTS dlq_items (
			id TEXT PRIMARY KEY,
			company_id TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_items_company ON dlq_items (company_id, status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS company_queue_state (
			company_id TEXT PRIMARY KEY,
			paused BOOLEAN NOT NULL DEFAULT false,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS feature_flags (
			company_id TEXT NOT NULL DEFAULT '',
			environment TEXT NOT NULL DEFAULT '*',
			key TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT false,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (company_id, environment, key)
		)`,
		`CREATE TABLE IF NOT EXISTS user_roles (
			user_id TEXT PRIMARY KEY,
			role TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, query := range queries {
		if _, err := a.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

func (a *Adapter) InsertNonce(ctx context.Context, rec *storage.NonceRecord) error {
	if rec.InsertedAt.IsZero() {
		rec.InsertedAt = time.Now().UTC()
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO signature_nonces (key_id, nonce, ip, user_agent, inserted_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.KeyID, rec.Nonce, rec.IP, rec.UserAgent, rec.InsertedAt,
	)
	if isUniqueViolation(err) {
		return storage.ErrDuplicateNonce
	}
	if err != nil {
		return fmt.Errorf("failed to insert nonce: %w", err)
	}
	return nil
}

func (a *Adapter) DeleteNoncesBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM signature_nonces WHERE inserted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune nonces: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (a *Adapter) CreateDLQItem(ctx context.Context, item *storage.DLQItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = storage.DLQStatusPending
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	var payload interface{}
	if len(item.Payload) > 0 {
		payload = string(item.Payload)
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO dlq_items (id, company_id, source, status, attempts, error_message, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.CompanyID, item.Source, item.Status, item.Attempts, item.ErrorMessage, payload,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dlq item: %w", err)
	}
	return nil
}

func (a *Adapter) ListDLQItems(ctx context.Context, filter storage.DLQFilter) ([]*storage.DLQItem, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, company_id, source, status, attempts, error_message, payload, created_at, updated_at
		 FROM dlq_items
		 WHERE company_id = $1 AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id
		 LIMIT $3`,
		filter.CompanyID, filter.Status, filter.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dlq items: %w", err)
	}
	defer rows.Close()

	items := []*storage.DLQItem{}
	for rows.Next() {
		item := &storage.DLQItem{}
		var payload []byte
		if err := rows.Scan(&item.ID, &item.CompanyID, &item.Source, &item.Status, &item.Attempts,
			&item.ErrorMessage, &payload, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dlq item: %w", err)
		}
		if len(payload) > 0 {
			item.Payload = payload
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (a *Adapter) DrainCompanyDLQ(ctx context.Context, companyID string) (int64, error) {
	tag, err := a.pool.Exec(ctx,
		`UPDATE dlq_items SET status = $1, updated_at = now() WHERE company_id = $2 AND status IN ($3, $4)`,
		storage.DLQStatusDraining, companyID, storage.DLQStatusPending, storage.DLQStatusRetrying,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to drain dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (a *Adapter) SetCompanyPaused(ctx context.Context, companyID string, paused bool) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO company_queue_state (company_id, paused, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (company_id) DO UPDATE SET paused = EXCLUDED.paused, updated_at = EXCLUDED.updated_at`,
		companyID, paused,
	)
	if err != nil {
		return fmt.Errorf("failed to set pause state: %w", err)
	}
	return nil
}

func (a *Adapter) GetCompanyQueueState(ctx context.Context, companyID string) (*storage.CompanyQueueState, error) {
	state := &storage.CompanyQueueState{CompanyID: companyID}

	err := a.pool.QueryRow(ctx,
		`SELECT paused, updated_at FROM company_queue_state WHERE company_id = $1`, companyID,
	).Scan(&state.Paused, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pause state: %w", err)
	}
	return state, nil
}

func (a *Adapter) UpsertFeatureFlag(ctx context.Context, flag *storage.FeatureFlag) error {
	env := flag.Environment
	if env == "" {
		env = storage.AnyEnvironment
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO feature_flags (company_id, environment, key, enabled, updated_at) VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (company_id, environment, key) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		flag.CompanyID, env, flag.Key, flag.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert feature flag: %w", err)
	}
	return nil
}

func (a *Adapter) FindFeatureFlags(ctx context.Context, companyID, environment, key string) ([]*storage.FeatureFlag, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT company_id, environment, key, enabled FROM feature_flags
		 WHERE key = $1 AND company_id IN ($2, $3) AND environment IN ($4, $5)`,
		key, companyID, storage.GlobalCompany, environment, storage.AnyEnvironment,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature flags: %w", err)
	}

	flags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.FeatureFlag, error) {
		flag := &storage.FeatureFlag{}
		err := row.Scan(&flag.CompanyID, &flag.Environment, &flag.Key, &flag.Enabled)
		return flag, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan feature flags: %w", err)
	}
	return flags, nil
}

func (a *Adapter) SetUserRole(ctx context.Context, userID, role string) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`,
		userID, role,
	)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	return nil
}

func (a *Adapter) GetUserRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := a.pool.QueryRow(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return role, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
