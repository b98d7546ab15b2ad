// Package cache provides a small caching interface backed by
// github.com/patrickmn/go-cache.
//
// The service caches values that are read on the request path but change
// rarely, such as resolved feature flags. Entries expire after a TTL and
// expired entries are swept on a cleanup interval.
//
// Example usage:
//
//	c := cache.NewLocalCache(30*time.Second, time.Minute)
//	c.Set(ctx, "flag:acme", true, 0)
//	if v, ok := c.Get(ctx, "flag:acme"); ok {
//		enabled := v.(bool)
//	}
package cache
