// Package metrics provides the centralized Prometheus metrics reference for
// the Materials API client. All metrics are defined in their respective
// packages (client, cache, ratelimit, progress) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - mapi_requests_total{endpoint, status} (Counter): Total requests by route and HTTP status
//   - mapi_request_duration_seconds{endpoint} (Histogram): Request duration by route
//   - mapi_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - mapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - mapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - mapi_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - mapi_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - mapi_cache_misses_total (Counter): Cache misses
//   - mapi_cache_errors_total{operation} (Counter): Cache operation errors
//   - mapi_cache_size_bytes_total{layer="redis"} (Counter): Bytes written to the cache
//
// Rate Limit Metrics (pkg/ratelimit):
//   - mapi_rate_limit_remaining (Gauge): Request budget left in the current window
//   - mapi_rate_limit_blocks_total (Counter): Requests blocked during 429 backoff
//   - mapi_rate_limit_throttles_total (Counter): Requests throttled on low budget
//
// Retrieval Metrics (pkg/progress):
//   - mapi_documents_retrieved_total{collection} (Counter): Documents retrieved by collection
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(mapi_cache_hits_total[5m])) /
//   (sum(rate(mapi_cache_hits_total[5m])) + sum(rate(mapi_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(mapi_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(mapi_request_duration_seconds_bucket[5m]))
//
//   # Retrieval Throughput
//   rate(mapi_documents_retrieved_total[5m])
