// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - HTTP endpoint latency and throughput (webhook receiver, diagnostics API)
// - Platform API client calls and circuit breaker state
// - WebSub subscription lifecycle
// - Fallback polling and fan-out processing
// - OAuth token refresh outcomes

var (
	// HTTP / API Metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_api_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autowl_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autowl_api_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Platform API Client Metrics

	PlatformCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autowl_platform_call_duration_seconds",
			Help:    "Duration of outbound Platform API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	PlatformCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_platform_call_errors_total",
			Help: "Total number of Platform API call failures by classification",
		},
		[]string{"operation", "error_class"}, // transient, unauthorized, quota_exceeded, not_found, malformed
	)

	PlatformQuotaUnitsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_platform_quota_units_consumed_total",
			Help: "Estimated quota units consumed against the platform API",
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autowl_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Token Refresh Loop Metrics

	TokenRefreshAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_token_refresh_attempts_total",
			Help: "Total number of OAuth token refresh attempts",
		},
		[]string{"result"}, // success, transient_failure, revoked
	)

	TokenRefreshLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autowl_token_refresh_last_run_timestamp",
			Help: "Unix timestamp of the last completed token refresh sweep",
		},
	)

	UsersDisabledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autowl_users_disabled_total",
			Help: "Total number of users whose automation was disabled due to unrecoverable auth failure",
		},
	)

	// WebSub Subscription Manager Metrics

	SubscriptionStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_subscription_state_transitions_total",
			Help: "Total number of WebSub subscription state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	SubscriptionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autowl_subscriptions_by_state",
			Help: "Current number of subscriptions in each state",
		},
		[]string{"state"},
	)

	SubscriptionRenewals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_subscription_renewals_total",
			Help: "Total number of WebSub subscription renewal attempts",
		},
		[]string{"result"}, // success, failure
	)

	// Webhook Receiver Metrics

	WebhookEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_webhook_events_received_total",
			Help: "Total number of webhook notifications received",
		},
		[]string{"result"}, // accepted, malformed, unverified
	)

	WebhookVerificationChallenges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autowl_webhook_verification_challenges_total",
			Help: "Total number of hub subscription verification GET requests handled",
		},
	)

	// Fallback Poller Metrics

	PollRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_poll_runs_total",
			Help: "Total number of fallback poll sweeps executed",
		},
		[]string{"result"},
	)

	PollChannelsScanned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autowl_poll_channels_scanned",
			Help:    "Number of channels scanned per fallback poll sweep",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	PollVideosDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autowl_poll_videos_discovered_total",
			Help: "Total number of videos discovered via fallback polling (not already seen via webhook)",
		},
	)

	// Fan-Out Processor Metrics

	FanoutEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_fanout_events_processed_total",
			Help: "Total number of webhook events processed by the fan-out worker",
		},
		[]string{"result"},
	)

	FanoutInsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autowl_fanout_playlist_inserts_total",
			Help: "Total number of playlist insert attempts performed during fan-out",
		},
		[]string{"result"}, // inserted, skipped, failed
	)

	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autowl_fanout_duration_seconds",
			Help:    "Duration of a single fan-out pass over pending webhook events",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// System Metrics

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autowl_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordAPIRequest records an inbound HTTP request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight HTTP request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPlatformCall records the outcome of a single Platform API call.
func RecordPlatformCall(operation string, duration time.Duration, errorClass string) {
	PlatformCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errorClass != "" {
		PlatformCallErrors.WithLabelValues(operation, errorClass).Inc()
	}
}

// RecordQuotaUnits adds estimated quota units consumed by an operation.
func RecordQuotaUnits(operation string, units int) {
	PlatformQuotaUnitsConsumed.WithLabelValues(operation).Add(float64(units))
}

// RecordCircuitBreakerTransition records a named circuit breaker changing state.
func RecordCircuitBreakerTransition(name, from, to string, stateValue float64) {
	CircuitBreakerState.WithLabelValues(name).Set(stateValue)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordTokenRefresh records the outcome of one user's token refresh attempt.
func RecordTokenRefresh(result string) {
	TokenRefreshAttempts.WithLabelValues(result).Inc()
}

// RecordTokenRefreshSweepComplete marks the timestamp of the last refresh sweep.
func RecordTokenRefreshSweepComplete() {
	TokenRefreshLastRun.Set(float64(time.Now().Unix()))
}

// RecordUserDisabled increments the count of users disabled due to unrecoverable auth failure.
func RecordUserDisabled() {
	UsersDisabledTotal.Inc()
}

// RecordSubscriptionTransition records a subscription moving between WebSub states.
func RecordSubscriptionTransition(from, to string) {
	SubscriptionStateTransitions.WithLabelValues(from, to).Inc()
}

// SetSubscriptionsByState overwrites the gauge for a given state with the current count.
func SetSubscriptionsByState(state string, count int64) {
	SubscriptionsByState.WithLabelValues(state).Set(float64(count))
}

// RecordSubscriptionRenewal records the outcome of a lease renewal attempt.
func RecordSubscriptionRenewal(success bool) {
	if success {
		SubscriptionRenewals.WithLabelValues("success").Inc()
	} else {
		SubscriptionRenewals.WithLabelValues("failure").Inc()
	}
}

// RecordWebhookEvent records the disposition of an inbound webhook notification.
func RecordWebhookEvent(result string) {
	WebhookEventsReceived.WithLabelValues(result).Inc()
}

// RecordWebhookChallenge increments the hub verification challenge counter.
func RecordWebhookChallenge() {
	WebhookVerificationChallenges.Inc()
}

// RecordPollRun records a completed fallback poll sweep.
func RecordPollRun(result string, channelsScanned int, videosDiscovered int) {
	PollRunsTotal.WithLabelValues(result).Inc()
	PollChannelsScanned.Observe(float64(channelsScanned))
	PollVideosDiscovered.Add(float64(videosDiscovered))
}

// RecordFanoutRun records a completed fan-out pass.
func RecordFanoutRun(duration time.Duration, eventsProcessed int, result string) {
	FanoutDuration.Observe(duration.Seconds())
	FanoutEventsProcessed.WithLabelValues(result).Add(float64(eventsProcessed))
}

// RecordFanoutInsert records the outcome of a single per-user playlist insert.
func RecordFanoutInsert(result string) {
	FanoutInsertsTotal.WithLabelValues(result).Inc()
}
