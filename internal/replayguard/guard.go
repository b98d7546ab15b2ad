// Package replayguard records every accepted (key id, nonce) pair so a
// signed request can be accepted at most once. Reservation is a single
// atomic insert against the backing store; a unique violation means the
// request is a replay.
package replayguard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"transbot-ops/internal/storage"
)

// ErrReplayDetected is returned by Reserve when the pair was already used.
var ErrReplayDetected = errors.New("replay detected")

// Store is the nonce ledger. storage.Storage satisfies it, as do
// RedisStore and MemoryStore.
type Store interface {
	InsertNonce(ctx context.Context, rec *storage.NonceRecord) error
	DeleteNoncesBefore(ctx context.Context, before time.Time) (int64, error)
}

// Meta is request metadata stored alongside the nonce for forensics.
type Meta struct {
	IP        string
	UserAgent string
}

type Guard struct {
	store Store
	now   func() time.Time
}

// New creates a Guard over store. A nil clock means time.Now.
func New(store Store, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{store: store, now: now}
}

// Reserve records the pair. It returns ErrReplayDetected when the pair
// exists and a wrapped store error when the ledger cannot be written.
func (g *Guard) Reserve(ctx context.Context, keyID, nonce string, meta Meta) error {
	err := g.store.InsertNonce(ctx, &storage.NonceRecord{
		KeyID:      keyID,
		Nonce:      nonce,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		InsertedAt: g.now().UTC(),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDuplicateNonce):
		return ErrReplayDetected
	default:
		return fmt.Errorf("reserve nonce: %w", err)
	}
}

// Prune deletes ledger rows older than retention.
func (g *Guard) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	return g.store.DeleteNoncesBefore(ctx, g.now().UTC().Add(-retention))
}

// MemoryStore is a process-local ledger for tests and single-instance
// development.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

func (m *MemoryStore) InsertNonce(_ context.Context, rec *storage.NonceRecord) error {
	key := rec.KeyID + "\x00" + rec.Nonce

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		return storage.ErrDuplicateNonce
	}
	m.entries[key] = rec.InsertedAt
	return nil
}

func (m *MemoryStore) DeleteNoncesBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key, insertedAt := range m.entries {
		if insertedAt.Before(before) {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of recorded nonces.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
