// SPDX-License-Identifier: AGPL-3.0-or-later

package platform

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/metrics"
)

// newBreaker builds a gobreaker/v2 circuit breaker guarding outbound calls
// to the YouTube Data API, in the same shape as the teacher's
// internal/sync/circuit_breaker.go: opens on a >=60% failure rate over at
// least 10 requests, half-opens after a cooldown, and reports every state
// transition to Prometheus.
func newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	metrics.RecordCircuitBreakerTransition(name, "", "closed", 0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("platform: circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), stateToFloat(to))
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// call executes fn through the breaker, tagging Prometheus metrics for the
// call's duration and outcome. errorClass, when fn returns a
// classifiable error, is threaded through to metrics.RecordPlatformCall so
// dashboards can separate expected QuotaExceeded/NotFound results from
// genuine Transient failures.
func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	duration := time.Since(start)

	if err != nil {
		apiErr := classify(op, err)
		metrics.RecordPlatformCall(op, duration, string(apiErr.Class))
		return nil, apiErr
	}

	metrics.RecordPlatformCall(op, duration, "")
	return result, nil
}
