// Package cache provides a Redis-backed cache for decoded query pages.
//
// Pages are cached under a deterministic key derived from the route and the
// sorted query parameters. Entries carry a fixed TTL configured on the client;
// the query API has no revalidation contract, so stale entries are simply
// refetched. The Redis TTL mirrors the entry expiry, so eviction needs no
// sweep.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager with the default entry lifetime
//	manager := cache.NewManager(redisClient, 15*time.Minute)
//
//	// Create cache key
//	key := cache.Key{
//		Endpoint: "materials/summary",
//		Params:   criteria.Encode(),
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from the API, then Set
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - mapi_cache_hits_total{layer="redis"} - Cache hits
//   - mapi_cache_misses_total - Cache misses
//   - mapi_cache_size_bytes_total{layer="redis"} - Bytes written to the cache
//   - mapi_cache_errors_total{operation} - Cache operation errors
//
// Cached pages never bypass the rate limit gate: the shared request budget is
// checked before the cache lookup, so a blocked client stays blocked even for
// pages it could serve locally.
package cache
