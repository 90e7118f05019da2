// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
	"github.com/tomtom215/guardian/internal/summary"
)

// VerdictHandler receives the verdict of every submitted summary, in
// submission order, on the worker goroutine.
type VerdictHandler func(summary.TrafficSummary, Verdict)

type request struct {
	summary summary.TrafficSummary
	reply   chan result // nil for fire-and-forget submissions
}

type result struct {
	verdict Verdict
	err     error
}

// Worker is the only goroutine that touches its Scorer. Producers hand it
// summaries through a bounded queue; a full queue is the producer's signal to
// shed load.
type Worker struct {
	scorer   Scorer
	queue    chan request
	handle   VerdictHandler
	counters *metrics.Counters
	logger   zerolog.Logger

	stopped  chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a worker with a queue of queueSize summaries.
func NewWorker(scorer Scorer, queueSize int, handle VerdictHandler, counters *metrics.Counters) *Worker {
	if queueSize <= 0 {
		queueSize = 1
	}
	if handle == nil {
		handle = func(summary.TrafficSummary, Verdict) {}
	}
	if counters == nil {
		counters = metrics.NewCounters()
	}
	return &Worker{
		scorer:   scorer,
		queue:    make(chan request, queueSize),
		handle:   handle,
		counters: counters,
		logger:   logging.WithComponent("analyzer"),
		stopped:  make(chan struct{}),
	}
}

// TrySubmit enqueues s without blocking. It returns false when the queue is
// full; the caller accounts for the drop.
func (w *Worker) TrySubmit(s summary.TrafficSummary) bool {
	select {
	case w.queue <- request{summary: s}:
		return true
	default:
		return false
	}
}

// Analyze scores s on the worker goroutine and waits for the verdict. Any
// number of goroutines may call it; their requests are served one at a time
// in queue order. The verdict is returned, not passed to the VerdictHandler.
func (w *Worker) Analyze(ctx context.Context, s summary.TrafficSummary) (Verdict, error) {
	reply := make(chan result, 1)

	select {
	case w.queue <- request{summary: s, reply: reply}:
	case <-ctx.Done():
		return Verdict{}, ctx.Err()
	case <-w.stopped:
		return Verdict{}, ErrWorkerStopped
	}

	select {
	case r := <-reply:
		return r.verdict, r.err
	case <-ctx.Done():
		return Verdict{}, ctx.Err()
	case <-w.stopped:
		return Verdict{}, ErrWorkerStopped
	}
}

// QueueLen returns the number of summaries waiting.
func (w *Worker) QueueLen() int {
	return len(w.queue)
}

// Run serves the queue until ctx is cancelled. Summaries still queued are left
// for Drain.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("queue_size", cap(w.queue)).Msg("Analysis worker started")
	for {
		// Cancellation wins over queued work.
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		select {
		case <-ctx.Done():
			return nil
		case req := <-w.queue:
			w.process(req)
		}
	}
}

// Drain processes queued summaries until the queue is empty or ctx expires,
// then discards the remainder and stops the worker. It returns how many
// summaries were processed and discarded.
func (w *Worker) Drain(ctx context.Context) (processed, discarded int) {
	defer w.stop()

drain:
	for ctx.Err() == nil {
		select {
		case req := <-w.queue:
			w.process(req)
			processed++
		default:
			break drain
		}
	}

	for {
		select {
		case req := <-w.queue:
			if req.reply != nil {
				req.reply <- result{err: ErrWorkerStopped}
			}
			discarded++
		default:
			if processed > 0 || discarded > 0 {
				w.logger.Info().Int("processed", processed).Int("discarded", discarded).Msg("Analysis queue drained")
			}
			return processed, discarded
		}
	}
}

func (w *Worker) stop() {
	w.stopOnce.Do(func() { close(w.stopped) })
}

func (w *Worker) process(req request) {
	start := time.Now()
	verdict, err := w.scorer.Analyze(req.summary)
	metrics.RecordAnalysis(time.Since(start))
	metrics.AnalysisQueueDepth.Set(float64(len(w.queue)))

	if err != nil {
		w.counters.InferenceError()
		w.logger.Warn().Err(err).Str("summary", req.summary.Text).Msg("Summary could not be scored")
	}

	if req.reply != nil {
		req.reply <- result{verdict: verdict, err: err}
		return
	}
	if err == nil {
		w.handle(req.summary, verdict)
	}
}
