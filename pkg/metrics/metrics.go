// Package metrics provides the Prometheus registry and HTTP handler for the
// Web API client. All metrics are defined in their respective packages
// (client, queue, ratelimit, pagination) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - webapi_requests_total{method, status} (Counter): HTTP exchanges by method and status
//     (status is the HTTP code or "network_error")
//   - webapi_request_duration_seconds{method} (Histogram): APICall duration, retries included
//   - webapi_errors_total{class} (Counter): Failed calls by class
//     (client, server, rate_limit, network, platform, argument)
//   - webapi_rate_limited_total{method} (Counter): 429 responses by method
//
// Retry Metrics (pkg/client):
//   - webapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - webapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - webapi_retry_exhausted_total{error_class} (Counter): Calls that used up their retries
//
// Queue Metrics (pkg/queue):
//   - webapi_queue_in_flight (Gauge): Requests holding a queue slot
//   - webapi_queue_waiting (Gauge): Requests waiting for a slot
//   - webapi_queue_pauses_total (Counter): Queue pauses caused by rate limits
//
// Shared Rate Limit Metrics (pkg/ratelimit):
//   - webapi_rate_limit_shared_pauses_total (Counter): Pauses published to Redis
//   - webapi_rate_limit_shared_wait_seconds (Histogram): Time spent waiting on a shared pause
//
// Pagination Metrics (pkg/pagination):
//   - webapi_pages_total{method} (Counter): Pages fetched by method
//
// Example Prometheus Queries:
//
//   # Platform error rate
//   rate(webapi_errors_total{class="platform"}[5m])
//
//   # Rate limited share of exchanges
//   sum(rate(webapi_rate_limited_total[5m])) / sum(rate(webapi_requests_total[5m]))
//
//   # Queue saturation
//   webapi_queue_waiting > 0
//
//   # P95 call latency
//   histogram_quantile(0.95, rate(webapi_request_duration_seconds_bucket[5m]))
