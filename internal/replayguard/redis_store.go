package replayguard

import (
	"context"
	"fmt"
	"time"

	"transbot-ops/internal/storage"
)

// SetNXClient is the subset of the redis client the store needs.
type SetNXClient interface {
	SetIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// RedisStore keeps nonces as keys with a TTL equal to the retention
// window, so it never needs pruning.
type RedisStore struct {
	client    SetNXClient
	retention time.Duration
	prefix    string
}

func NewRedisStore(client SetNXClient, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention, prefix: "nonce:"}
}

func (s *RedisStore) InsertNonce(ctx context.Context, rec *storage.NonceRecord) error {
	ok, err := s.client.SetIfAbsent(ctx, s.key(rec.KeyID, rec.Nonce), rec, s.retention)
	if err != nil {
		return fmt.Errorf("redis nonce insert: %w", err)
	}
	if !ok {
		return storage.ErrDuplicateNonce
	}
	return nil
}

// DeleteNoncesBefore is a no-op; keys expire on their own.
func (s *RedisStore) DeleteNoncesBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// key length-prefixes the key id so ids and nonces containing ':' cannot
// collide.
func (s *RedisStore) key(keyID, nonce string) string {
	return fmt.Sprintf("%s%d:%s:%s", s.prefix, len(keyID), keyID, nonce)
}
