// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package eventprocessor forwards alerts to external dashboards over NATS.
//
// The Forwarder is an alert bus subscriber. Each alert becomes an AlertEvent
// published on "<subject>.<level>", for example "guardian.alerts.critical",
// so dashboards can subscribe to "guardian.alerts.>" or to a single level.
//
//	┌───────────┐   ┌───────────┐   ┌──────────────┐   ┌──────────┐
//	│ Alert Bus │──▶│ Forwarder │──▶│  Publisher   │──▶│   NATS   │
//	└───────────┘   └───────────┘   │ (Watermill + │   └──────────┘
//	                                │  breaker)    │
//	                                └──────────────┘
//
// A slow or unreachable NATS server only fills the forwarder's own
// subscription queue; the bus lag policy then applies to it like any other
// subscriber, and detection is never delayed.
//
// # Build Tags
//
// The Watermill/NATS publisher is compiled only with -tags=nats. Without it
// NewPublisher returns ErrNATSUnavailable and the forwarder is not started.
//
//	go build -tags nats ./cmd/guardian
//
// # Resilience
//
// Publishes go through a gobreaker circuit breaker (NewCircuitBreaker). While
// it is open, alerts fail fast and are counted in
// guardian_alerts_forwarded_total{sink="nats",result="error"}. The NATS client
// reconnects on its own and buffers up to ReconnectBuffer bytes meanwhile.
package eventprocessor
