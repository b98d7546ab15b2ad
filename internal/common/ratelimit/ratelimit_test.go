package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transbot-ops/internal/common/logging"
	"transbot-ops/internal/redis"
)

func TestConfigValidate(t *testing.T) {
	cfg := Config{Enabled: true, MaxRequests: 5, Window: time.Minute}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendLocal, cfg.Type)
	assert.Equal(t, 10000, cfg.MaxKeys)

	dist := Config{Enabled: true, MaxRequests: 5, Window: time.Minute, Type: BackendDistributed}
	require.NoError(t, dist.Validate())
	assert.Equal(t, "ratelimit:", dist.KeyPrefix)

	assert.Error(t, (&Config{Enabled: true, Window: time.Minute}).Validate())
	assert.Error(t, (&Config{Enabled: true, MaxRequests: 1}).Validate())
	assert.Error(t, (&Config{Enabled: true, MaxRequests: 1, Window: time.Second, Type: "memcached"}).Validate())
	assert.NoError(t, (&Config{}).Validate())
}

func TestLocalLimiter_PerKeyBudget(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Enabled: true, MaxRequests: 3, Window: time.Hour})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Limit)

	other, err := limiter.Allow(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLocalLimiter_Disabled(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Enabled: false, MaxRequests: 1})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		d, err := limiter.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestLocalLimiter_Cleanup(t *testing.T) {
	l, err := NewLocalLimiter(Config{Enabled: true, MaxRequests: 1, Window: time.Hour, CleanupPeriod: time.Minute})
	require.NoError(t, err)
	rl := l.(*localLimiter)

	now := time.Now()
	rl.now = func() time.Time { return now }
	_, _ = rl.Allow(context.Background(), "stale")

	now = now.Add(2 * time.Minute)
	_, _ = rl.Allow(context.Background(), "fresh")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.limiters, "stale")
	assert.Contains(t, rl.limiters, "fresh")
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestDistributedLimiter(t *testing.T) {
	client, mr := setupRedis(t)

	limiter, err := New(Config{Enabled: true, MaxRequests: 2, Window: time.Minute}, client)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	second, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, second.Allowed)

	third, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Equal(t, 0, third.Remaining)

	assert.True(t, mr.Exists("ratelimit:ip:10.0.0.1"))
	assert.NoError(t, limiter.Health(ctx))

	mr.SetError("down")
	_, err = limiter.Allow(ctx, "ip:10.0.0.1")
	assert.Error(t, err)
}

func TestNewDistributedLimiter_RequiresRedis(t *testing.T) {
	_, err := NewDistributedLimiter(Config{Enabled: true, MaxRequests: 1, Window: time.Second}, nil)
	assert.Error(t, err)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}
func (failingLimiter) Health(context.Context) error { return errors.New("redis down") }

func TestHTTPMiddleware(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{Enabled: true, MaxRequests: 1, Window: time.Hour})
	require.NoError(t, err)

	handler := HTTPMiddleware(limiter, IPKey, logging.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dlq-admin", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]interface{}{"ok": false, "error": "rate_limited"}, body)
}

func TestHTTPMiddleware_FailsOpen(t *testing.T) {
	handler := HTTPMiddleware(failingLimiter{}, IPKey, logging.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/dlq-admin", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "ip:192.0.2.1", IPKey(req))
	assert.Equal(t, "POST:/dlq-admin", EndpointKey(req))
	assert.Equal(t, "ip:192.0.2.1:POST:/dlq-admin", CombinedKey(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "ip:198.51.100.4", IPKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.9", IPKey(req))
}
