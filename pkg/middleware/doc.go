// Package middleware provides the net/http middleware kiln servers are
// assembled from.
//
// Middleware is registered by name in a Registry and selected from
// configuration:
//
//	{
//	  "server": {
//	    "middleware": ["requestid", "realip", "recoverer", "logger", "security", "metrics"]
//	  }
//	}
//
// DefaultRegistry provides:
//   - requestid, realip, recoverer: chi's request id, real IP and panic recovery
//   - canonical: 308 redirects to the canonical form of the request path
//   - logger: one structured log line per request
//   - security: response hardening headers
//   - cors: cross-origin handling from the cors config section
//   - metrics: Prometheus request metrics
//   - tracing: OpenTelemetry server spans
//
// # Prometheus Metrics
//
// Metrics collects:
//   - kiln_http_requests_total: requests by method, route and status
//   - kiln_http_request_duration_seconds: request latency by method and route
//   - kiln_bundle_builds_total: bundle builds by result
//   - kiln_bundle_build_duration_seconds: bundle build latency
//   - kiln_bundle_cache_events_total: cache hits, misses, shared builds and evictions
//
// A Metrics value is also a bundlecache.Observer; pass it to the cache with
// bundlecache.WithObserver to record build and cache events.
//
// # Context Propagation
//
// Tracing stores the server span in the request context, so handlers and
// the bundle generator start child spans from r.Context().
package middleware
