// Package ratelimit throttles the admin surface per caller. Two backends
// share one interface:
//
//   - local: a token bucket per key from golang.org/x/time/rate, for a
//     single replica or when redis is not configured.
//   - distributed: a redis sorted-set sliding window, so every replica
//     counts against the same budget.
//
// # Usage
//
//	limiter, err := ratelimit.New(ratelimit.Config{
//		Enabled:     true,
//		MaxRequests: 60,
//		Window:      time.Minute,
//	}, redisClient)
//	if err != nil {
//		return err
//	}
//
//	router.Use(ratelimit.HTTPMiddleware(limiter, ratelimit.IPKey, logger))
//
// Limiter errors never block traffic: the middleware logs them and lets the
// request through.
package ratelimit
