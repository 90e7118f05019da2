// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

//go:build !nats

package eventprocessor

import (
	"context"

	gobreaker "github.com/sony/gobreaker/v2"
)

// Publisher is a stub when NATS dependencies are not available.
// Build with -tags=nats to enable the Watermill publisher.
type Publisher struct {
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
}

// NewPublisher returns ErrNATSUnavailable.
func NewPublisher(cfg PublisherConfig, logger interface{}) (*Publisher, error) {
	return nil, ErrNATSUnavailable
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// PublishAlert returns ErrNATSUnavailable.
func (p *Publisher) PublishAlert(ctx context.Context, subject string, e AlertEvent) error {
	return ErrNATSUnavailable
}

// Close is a no-op stub.
func (p *Publisher) Close() error {
	return nil
}
