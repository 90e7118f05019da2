// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package eventprocessor

import (
	"errors"
	"time"
)

// DefaultSubject is the subject prefix for forwarded alerts.
const DefaultSubject = "guardian.alerts"

// ErrNATSUnavailable is returned by NewPublisher in builds without the nats tag.
var ErrNATSUnavailable = errors.New("NATS publisher not available: build with -tags=nats")

// PublisherConfig configures the NATS publisher.
type PublisherConfig struct {
	// URL is the NATS server connection URL.
	URL string

	// MaxReconnects bounds reconnection attempts; -1 retries forever.
	MaxReconnects int

	// ReconnectWait is the delay between reconnection attempts.
	ReconnectWait time.Duration

	// ReconnectBuffer is the number of bytes buffered while disconnected.
	ReconnectBuffer int

	// JetStream publishes to a JetStream stream instead of core NATS. The
	// stream must already exist.
	JetStream bool

	// TrackMsgID sets Nats-Msg-Id to the alert id for JetStream deduplication.
	TrackMsgID bool
}

// DefaultPublisherConfig returns production defaults for url.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:             url,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		TrackMsgID:      true,
	}
}

// CircuitBreakerConfig configures the publish circuit breaker.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "nats-publisher",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}
