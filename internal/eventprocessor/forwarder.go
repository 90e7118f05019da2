// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package eventprocessor

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
)

// sinkName labels forwarding metrics.
const sinkName = "nats"

// AlertPublisher is the part of Publisher the forwarder needs.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, subject string, e AlertEvent) error
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	// Subject is the subject prefix; the alert level is appended.
	Subject string

	// Sensor identifies this host in forwarded events. Defaults to the hostname.
	Sensor string

	// PublishTimeout bounds a single publish. Default: 5s
	PublishTimeout time.Duration

	// DrainTimeout bounds forwarding after shutdown starts, while the
	// pipeline drains and closes the bus. Default: alertbus.DefaultDrainTimeout
	DrainTimeout time.Duration
}

// ForwarderStats reports forwarding activity.
type ForwarderStats struct {
	Forwarded uint64 `json:"forwarded"`
	Failed    uint64 `json:"failed"`
	Missed    uint64 `json:"missed"`
}

// Forwarder subscribes to the alert bus and publishes every alert.
// It implements suture.Service.
type Forwarder struct {
	bus       *alertbus.Bus
	publisher AlertPublisher
	cfg       ForwarderConfig
	logger    zerolog.Logger
	failLog   zerolog.Logger

	forwarded atomic.Uint64
	failed    atomic.Uint64
	missed    atomic.Uint64
}

// NewForwarder creates a forwarder from bus to publisher.
func NewForwarder(bus *alertbus.Bus, publisher AlertPublisher, cfg ForwarderConfig) *Forwarder {
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Sensor == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Sensor = host
		}
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = alertbus.DefaultDrainTimeout
	}
	logger := logging.WithComponent("forwarder")
	return &Forwarder{
		bus:       bus,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		failLog:   logger.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Minute}),
	}
}

// Serve forwards alerts until the bus closes. When ctx ends first it keeps
// forwarding until the bus closes or DrainTimeout passes. Publish failures
// are counted and logged; the alert is not retried.
func (f *Forwarder) Serve(ctx context.Context) error {
	sub := f.bus.Subscribe()
	defer f.bus.Unsubscribe(sub)

	f.logger.Info().Str("subject", f.cfg.Subject+".>").Str("sensor", f.cfg.Sensor).Msg("Alert forwarding started")
	err := alertbus.Consume(ctx, sub, f.cfg.DrainTimeout, func(pubCtx context.Context, d alertbus.Delivery) {
		if d.IsLagNotice() {
			f.missed.Add(d.Missed)
			f.logger.Warn().Uint64("missed", d.Missed).Msg("Forwarder fell behind, alerts not forwarded")
			return
		}
		f.forward(pubCtx, d.Alert)
	})
	switch {
	case errors.Is(err, alertbus.ErrClosed):
		f.logger.Info().
			Uint64("forwarded", f.forwarded.Load()).
			Uint64("failed", f.failed.Load()).
			Msg("Alert bus closed, forwarder stopping")
		return suture.ErrDoNotRestart
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		f.logger.Warn().Int("queued", sub.Len()).Msg("Alert bus still open after drain timeout, forwarder stopping")
		return ctx.Err()
	default:
		f.logger.Warn().Err(err).Msg("Forwarder lost its subscription")
		return err
	}
}

func (f *Forwarder) forward(ctx context.Context, a alertbus.Alert) {
	event := NewAlertEvent(a, f.cfg.Sensor)
	subject := event.Subject(f.cfg.Subject)

	pubCtx, cancel := context.WithTimeout(ctx, f.cfg.PublishTimeout)
	err := f.publisher.PublishAlert(pubCtx, subject, event)
	cancel()

	metrics.RecordForward(sinkName, err)
	if err != nil {
		f.failed.Add(1)
		f.failLog.Warn().Err(err).Str("subject", subject).Uint64("sequence", a.Sequence).Msg("Failed to forward alert")
		return
	}
	f.forwarded.Add(1)
}

// Stats returns forwarding counts.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Forwarded: f.forwarded.Load(),
		Failed:    f.failed.Load(),
		Missed:    f.missed.Load(),
	}
}

// String implements fmt.Stringer for suture logging.
func (f *Forwarder) String() string {
	return "nats-forwarder"
}
