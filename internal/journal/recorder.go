// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/mitigation"
)

// DefaultGCInterval is how often the recorder compacts the journal.
const DefaultGCInterval = 10 * time.Minute

// Recorder is a bus subscriber that writes every alert to the journal.
// It implements suture.Service.
type Recorder struct {
	journal      *Journal
	bus          *alertbus.Bus
	gcInterval   time.Duration
	drainTimeout time.Duration
	logger       zerolog.Logger
}

// NewRecorder creates a recorder. A non-positive gcInterval uses
// DefaultGCInterval.
func NewRecorder(j *Journal, bus *alertbus.Bus, gcInterval time.Duration) *Recorder {
	if gcInterval <= 0 {
		gcInterval = DefaultGCInterval
	}
	return &Recorder{
		journal:      j,
		bus:          bus,
		gcInterval:   gcInterval,
		drainTimeout: alertbus.DefaultDrainTimeout,
		logger:       logging.WithComponent("journal"),
	}
}

// WithDrainTimeout sets how long the recorder keeps journaling after its
// context ends, waiting for the pipeline to close the bus.
func (r *Recorder) WithDrainTimeout(d time.Duration) *Recorder {
	if d > 0 {
		r.drainTimeout = d
	}
	return r
}

// Serve subscribes to the bus and records alerts until the bus closes. When
// ctx ends first it keeps recording until the bus closes or the drain
// timeout passes. A lag disconnect returns the error so the supervisor
// restarts the recorder with a fresh subscription.
func (r *Recorder) Serve(ctx context.Context) error {
	sub := r.bus.Subscribe()
	defer r.bus.Unsubscribe(sub)

	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go r.compactLoop(gcCtx)

	r.logger.Info().Uint64("subscriber", sub.ID()).Msg("Alert journal recording")
	err := alertbus.Consume(ctx, sub, r.drainTimeout, func(_ context.Context, d alertbus.Delivery) {
		r.record(d)
	})
	switch {
	case errors.Is(err, alertbus.ErrClosed):
		r.logger.Info().Int64("alerts", r.journal.Stats().Alerts).Msg("Alert bus closed, journal recorder stopping")
		return suture.ErrDoNotRestart
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		r.logger.Warn().Int("queued", sub.Len()).Msg("Alert bus still open after drain timeout, journal recorder stopping")
		return ctx.Err()
	default:
		r.logger.Warn().Err(err).Msg("Journal recorder lost its subscription")
		return err
	}
}

func (r *Recorder) compactLoop(ctx context.Context) {
	ticker := time.NewTicker(r.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.journal.RunGC(); err != nil && !errors.Is(err, ErrClosed) {
				r.logger.Warn().Err(err).Msg("Journal compaction failed")
			}
		}
	}
}

func (r *Recorder) record(d alertbus.Delivery) {
	if d.IsLagNotice() {
		r.logger.Warn().Uint64("missed", d.Missed).Msg("Journal fell behind, alerts not recorded")
		return
	}
	if err := r.journal.RecordAlert(d.Alert); err != nil {
		r.logger.Error().Err(err).Uint64("sequence", d.Alert.Sequence).Msg("Failed to journal alert")
	}
}

// RecordMitigation adapts Journal.RecordMitigation to mitigation.Executor.OnRecord.
func (r *Recorder) RecordMitigation(rec mitigation.Record) {
	if err := r.journal.RecordMitigation(rec); err != nil && !errors.Is(err, ErrClosed) {
		r.logger.Error().Err(err).Str("target", rec.Target.String()).Msg("Failed to journal mitigation")
	}
}

// String implements fmt.Stringer for suture logging.
func (r *Recorder) String() string {
	return "alert-journal"
}
