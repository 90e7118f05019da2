// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package capture

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
)

// DefaultMaxConsecutiveErrors is used when NewLoop is given a non-positive limit.
const DefaultMaxConsecutiveErrors = 100

// Handler receives every successfully captured record on the loop goroutine.
// It must not block; hand-off to slower stages is the handler's concern.
type Handler func(PacketRecord)

// Loop owns a Source and pumps its records into a Handler.
type Loop struct {
	src            Source
	handle         Handler
	counters       *metrics.Counters
	maxConsecutive int
	logger         zerolog.Logger
}

// NewLoop creates a capture loop. The loop takes ownership of src and closes it
// when Run returns.
func NewLoop(src Source, handle Handler, counters *metrics.Counters, maxConsecutiveErrors int) *Loop {
	if maxConsecutiveErrors <= 0 {
		maxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if counters == nil {
		counters = metrics.NewCounters()
	}
	return &Loop{
		src:            src,
		handle:         handle,
		counters:       counters,
		maxConsecutive: maxConsecutiveErrors,
		logger:         logging.WithComponent("capture"),
	}
}

// Run reads until ctx is cancelled, the source is exhausted, or a fatal error occurs.
//
// Returns nil on cancellation, ErrSourceClosed when the source ended on its own,
// and a fatal *CaptureError otherwise. The source is closed in every case.
func (l *Loop) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.src.Close()
		case <-done:
		}
	}()
	defer func() { _ = l.src.Close() }()

	consecutive := 0
	for {
		rec, err := l.src.Next()
		if err == nil {
			consecutive = 0
			l.counters.PacketSeen()
			l.handle(rec)
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrSourceClosed) {
			l.logger.Info().Msg("Capture source exhausted")
			return ErrSourceClosed
		}
		if IsFatal(err) {
			l.logger.Error().Err(err).Msg("Fatal capture error")
			return err
		}

		consecutive++
		l.counters.PacketSkipped()
		if consecutive >= l.maxConsecutive {
			fatal := &CaptureError{Kind: KindTooManyErrors, Fatal: true, Err: err}
			var ce *CaptureError
			if errors.As(err, &ce) {
				fatal.Interface = ce.Interface
			}
			l.logger.Error().Err(err).Int("consecutive", consecutive).Msg("Capture error threshold reached")
			return fatal
		}
		l.logger.Warn().Err(err).Int("consecutive", consecutive).Msg("Skipping packet after read error")
	}
}
