package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"transbot-ops/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
	now    func() time.Time
}

var _ storage.Storage = (*Adapter)(nil)

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; one connection also keeps a shared
	// in-memory database alive for the adapter's lifetime.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	adapter := &Adapter{
		db:     db,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS signature_nonces (
			key_id TEXT NOT NULL,
			nonce TEXT NOT NULL,
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			inserted_at DATETIME NOT NULL,
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
			payload TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dlq_items_company ON dlq_items (company_id, status, created_at)`,
		`CREATE TABLE IF NOT EXISTS company_queue_state (
			company_id TEXT PRIMARY KEY,
			paused BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feature_flags (
			company_id TEXT NOT NULL DEFAULT '',
			environment TEXT NOT NULL DEFAULT '*',
			key TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (company_id, environment, key)
		)`,
		`CREATE TABLE IF NOT EXISTS user_roles (
			user_id TEXT PRIMARY KEY,
			role TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

func (a *Adapter) InsertNonce(ctx context.Context, rec *storage.NonceRecord) error {
	if rec.InsertedAt.IsZero() {
		rec.InsertedAt = a.now()
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO signature_nonces (key_id, nonce, ip, user_agent, inserted_at) VALUES (?, ?, ?, ?, ?)`,
		rec.KeyID, rec.Nonce, rec.IP, rec.UserAgent, rec.InsertedAt.UTC(),
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
	result, err := a.db.ExecContext(ctx, `DELETE FROM signature_nonces WHERE inserted_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune nonces: %w", err)
	}
	return result.RowsAffected()
}

func (a *Adapter) CreateDLQItem(ctx context.Context, item *storage.DLQItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = storage.DLQStatusPending
	}
	now := a.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	var payload interface{}
	if len(item.Payload) > 0 {
		payload = string(item.Payload)
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO dlq_items (id, company_id, source, status, attempts, error_message, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.CompanyID, item.Source, item.Status, item.Attempts, item.ErrorMessage, payload,
		item.CreatedAt.UTC(), item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dlq item: %w", err)
	}
	return nil
}

func (a *Adapter) ListDLQItems(ctx context.Context, filter storage.DLQFilter) ([]*storage.DLQItem, error) {
	query := `SELECT id, company_id, source, status, attempts, error_message, payload, created_at, updated_at
		FROM dlq_items WHERE company_id = ?`
	args := []interface{}{filter.CompanyID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, filter.Limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dlq items: %w", err)
	}
	defer rows.Close()

	items := []*storage.DLQItem{}
	for rows.Next() {
		item := &storage.DLQItem{}
		var payload sql.NullString
		if err := rows.Scan(&item.ID, &item.CompanyID, &item.Source, &item.Status, &item.Attempts,
			&item.ErrorMessage, &payload, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dlq item: %w", err)
		}
		if payload.Valid && payload.String != "" {
			item.Payload = []byte(payload.String)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (a *Adapter) DrainCompanyDLQ(ctx context.Context, companyID string) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		`UPDATE dlq_items SET status = ?, updated_at = ? WHERE company_id = ? AND status IN (?, ?)`,
		storage.DLQStatusDraining, a.now(), companyID, storage.DLQStatusPending, storage.DLQStatusRetrying,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to drain dlq: %w", err)
	}
	return result.RowsAffected()
}

func (a *Adapter) SetCompanyPaused(ctx context.Context, companyID string, paused bool) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO company_queue_state (company_id, paused, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (company_id) DO UPDATE SET paused = excluded.paused, updated_at = excluded.updated_at`,
		companyID, paused, a.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set pause state: %w", err)
	}
	return nil
}

func (a *Adapter) GetCompanyQueueState(ctx context.Context, companyID string) (*storage.CompanyQueueState, error) {
	state := &storage.CompanyQueueState{CompanyID: companyID}

	err := a.db.QueryRowContext(ctx,
		`SELECT paused, updated_at FROM company_queue_state WHERE company_id = ?`, companyID,
	).Scan(&state.Paused, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
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

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO feature_flags (company_id, environment, key, enabled, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, environment, key) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		flag.CompanyID, env, flag.Key, flag.Enabled, a.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert feature flag: %w", err)
	}
	return nil
}

func (a *Adapter) FindFeatureFlags(ctx context.Context, companyID, environment, key string) ([]*storage.FeatureFlag, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT company_id, environment, key, enabled FROM feature_flags
		 WHERE key = ? AND company_id IN (?, ?) AND environment IN (?, ?)`,
		key, companyID, storage.GlobalCompany, environment, storage.AnyEnvironment,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature flags: %w", err)
	}
	defer rows.Close()

	var flags []*storage.FeatureFlag
	for rows.Next() {
		flag := &storage.FeatureFlag{}
		if err := rows.Scan(&flag.CompanyID, &flag.Environment, &flag.Key, &flag.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan feature flag: %w", err)
		}
		flags = append(flags, flag)
	}

	return flags, rows.Err()
}

func (a *Adapter) SetUserRole(ctx context.Context, userID, role string) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		userID, role, a.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	return nil
}

func (a *Adapter) GetUserRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := a.db.QueryRowContext(ctx, `SELECT role FROM user_roles WHERE user_id = ?`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return role, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
