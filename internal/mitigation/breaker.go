// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package mitigation

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
)

// Circuit breaker defaults for the firewall backend:
//   - opens after 5 consecutive failed attempts
//   - stays open for 30 seconds, then lets one trial request through
const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

func newBreaker(backend string, openTimeout time.Duration) *gobreaker.CircuitBreaker[interface{}] {
	name := "mitigation-" + backend
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= breakerConsecutiveFailures
			if shouldTrip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Str("breaker", name).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), int(to))
		},
	})
}
