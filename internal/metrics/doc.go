// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for the webhook receiver, the platform API client, and
the four background loops (token refresh, WebSub subscription management,
fallback polling, fan-out processing).

# Overview

The package provides metrics for:
  - HTTP request latency and throughput (webhook + diagnostics surface)
  - Platform API call duration, error classification, and quota consumption
  - Circuit breaker state transitions
  - OAuth token refresh outcomes
  - WebSub subscription lifecycle transitions
  - Fallback poll sweep coverage
  - Fan-out playlist insert outcomes

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Usage Example

	import (
	    "github.com/watchlaterhq/autowl/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())
	    metrics.RecordPlatformCall("insert_playlist_item", elapsed, "")
	}

# Cardinality Management

To prevent high cardinality issues:
  - Endpoint labels are normalized (no query parameters, no path IDs)
  - Error classes are limited to the fixed taxonomy: transient, unauthorized,
    quota_exceeded, not_found, malformed
  - Per-user or per-video labels are never attached to a metric

# Thread Safety

All metric recording functions are thread-safe; the Prometheus client library
handles synchronization internally.

# See Also

  - internal/middleware: HTTP middleware that records request metrics
  - internal/platform: Platform API client that records call/circuit metrics
*/
package metrics
