// Package locks provides distributed locking for maintenance jobs that must
// run on one replica at a time, using the Redlock implementation from
// go-redsync/redsync/v4.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	apperrors "transbot-ops/internal/common/errors"
	"transbot-ops/internal/redis"
)

// RedsyncLocker hands out single-attempt locks. Each successful acquisition
// returns an opaque token; only that token releases the lock.
type RedsyncLocker struct {
	redsync *redsync.Redsync
	held    map[string]*redsync.Mutex
	mutex   sync.Mutex
}

// NewRedsyncLocker creates a locker on top of a connected redis client.
func NewRedsyncLocker(redisClient *redis.Client) (*RedsyncLocker, error) {
	if redisClient == nil {
		return nil, apperrors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())

	return &RedsyncLocker{
		redsync: redsync.New(pool),
		held:    make(map[string]*redsync.Mutex),
	}, nil
}

// AcquireLock tries once to take lock:<key>. It returns "" with no error
// when another holder owns the lock.
func (l *RedsyncLocker) AcquireLock(ctx context.Context, key string, expiration time.Duration) (string, error) {
	mutex := l.redsync.NewMutex(fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(expiration),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return "", nil
		}
		return "", apperrors.ConnectionError("failed to acquire distributed lock", err)
	}

	token := mutex.Value()
	l.mutex.Lock()
	l.held[token] = mutex
	l.mutex.Unlock()

	return token, nil
}

// ReleaseLock releases the lock acquired with token. Unknown tokens are a
// no-op.
func (l *RedsyncLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mutex.Lock()
	mutex, ok := l.held[token]
	delete(l.held, token)
	l.mutex.Unlock()

	if !ok || mutex.Name() != fmt.Sprintf("lock:%s", key) {
		return nil
	}

	if _, err := mutex.UnlockContext(ctx); err != nil {
		return apperrors.ConnectionError("failed to release distributed lock", err)
	}
	return nil
}

// Close releases every lock still held by this process.
func (l *RedsyncLocker) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for token, mutex := range l.held {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, _ = mutex.UnlockContext(ctx)
		cancel()
		delete(l.held, token)
	}
	return nil
}
