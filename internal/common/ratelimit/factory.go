package ratelimit

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"transbot-ops/internal/common/logging"
)

// New picks the distributed backend when a redis client is given and the
// local backend otherwise.
func New(config Config, redisClient RedisInterface) (Limiter, error) {
	if redisClient != nil {
		config.Type = BackendDistributed
		return NewDistributedLimiter(config, redisClient)
	}
	config.Type = BackendLocal
	return NewLocalLimiter(config)
}

// HTTPMiddleware rejects requests over budget with 429 and a
// {"ok":false,"error":"rate_limited"} body. Requests with an empty key and
// limiter failures pass through.
func HTTPMiddleware(limiter Limiter, keyFunc func(*http.Request) string, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WithContext(r.Context()).Warn("Rate limiter unavailable, allowing request",
					logging.Field{Key: "key", Value: key},
					logging.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				logger.WithContext(r.Context()).Warn("Rate limit exceeded",
					logging.Field{Key: "key", Value: key},
					logging.Field{Key: "path", Value: r.URL.Path},
				)
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "rate_limited"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPKey extracts the client IP, preferring the first X-Forwarded-For hop.
func IPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return "ip:" + realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}

// EndpointKey creates a key based on the request endpoint
func EndpointKey(r *http.Request) string {
	return fmt.Sprintf("%s:%s", r.Method, r.URL.Path)
}

// CombinedKey creates a key combining IP and endpoint
func CombinedKey(r *http.Request) string {
	return fmt.Sprintf("%s:%s", IPKey(r), EndpointKey(r))
}
