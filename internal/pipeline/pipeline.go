// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/analyzer"
	"github.com/tomtom215/guardian/internal/capture"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
	"github.com/tomtom215/guardian/internal/mitigation"
	"github.com/tomtom215/guardian/internal/summary"
)

// DefaultGracePeriod bounds shutdown when Config.GracePeriod is zero.
const DefaultGracePeriod = 5 * time.Second

// DefaultQueueSize is the analysis queue capacity when Config.QueueSize is zero.
const DefaultQueueSize = 1024

// SourceOpener opens the capture device.
type SourceOpener func(capture.Config) (capture.Source, error)

// ScorerLoader loads the threat analyzer.
type ScorerLoader func() (analyzer.Scorer, error)

// Config configures a Pipeline.
type Config struct {
	Capture              capture.Config
	MaxConsecutiveErrors int
	QueueSize            int
	GracePeriod          time.Duration
}

// Pipeline connects capture, summarization, analysis, alerting and
// mitigation.
//
// Startup order is fixed: Start opens the capture device first and only then
// loads the analyzer, so an unavailable device aborts startup before any
// model is read. Serve runs the stages until its context ends and then shuts
// them down in order:
//
//  1. stop capture and close the device
//  2. drain queued summaries for at most the grace period
//  3. close the alert bus so every subscriber session ends
//  4. stop mitigation, abandoning attempts still running at the deadline
type Pipeline struct {
	cfg      Config
	bus      *alertbus.Bus
	counters *metrics.Counters
	open     SourceOpener
	load     ScorerLoader
	executor *mitigation.Executor
	logger   zerolog.Logger
	dropLog  zerolog.Logger

	source capture.Source
	worker *analyzer.Worker

	mu      sync.Mutex
	started bool
	served  bool
	err     error
}

// New creates a pipeline publishing to bus. counters may be shared with the
// bus and the executor so a single snapshot covers every stage.
func New(cfg Config, bus *alertbus.Bus, counters *metrics.Counters, open SourceOpener, load ScorerLoader) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if counters == nil {
		counters = metrics.NewCounters()
	}
	logger := logging.WithComponent("pipeline")
	return &Pipeline{
		cfg:      cfg,
		bus:      bus,
		counters: counters,
		open:     open,
		load:     load,
		logger:   logger,
		dropLog:  logger.Sample(&zerolog.BurstSampler{Burst: 1, Period: 10 * time.Second}),
	}
}

// ErrAlreadyStarted is returned by Start and SetExecutor once Start has run.
var ErrAlreadyStarted = errors.New("pipeline already started")

// SetExecutor enables automated mitigation. It must be called before Start.
func (p *Pipeline) SetExecutor(e *mitigation.Executor) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.executor = e
	return nil
}

// MitigationEnabled reports whether an executor is attached.
func (p *Pipeline) MitigationEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executor != nil
}

// Counters returns the shared activity counters.
func (p *Pipeline) Counters() *metrics.Counters {
	return p.counters
}

// Start opens the capture device and then loads the analyzer. A device
// failure is returned as a *capture.CaptureError and the loader is never
// called. A loader failure closes the device again.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}

	iface := p.cfg.Capture.Interface
	src, err := p.open(p.cfg.Capture)
	if err != nil {
		var ce *capture.CaptureError
		if !errors.As(err, &ce) {
			ce = capture.ClassifyOpenError(iface, err)
		}
		p.logger.Error().Err(ce).Str("interface", iface).Msg("Capture device unavailable, aborting startup")
		return ce
	}

	scorer, err := p.load()
	if err != nil {
		_ = src.Close()
		p.logger.Error().Err(err).Msg("Threat analyzer failed to load, aborting startup")
		return err
	}

	p.source = src
	p.worker = analyzer.NewWorker(scorer, p.cfg.QueueSize, p.onVerdict, p.counters)
	p.started = true
	p.logger.Info().Str("interface", iface).Int("queue_size", p.cfg.QueueSize).Bool("mitigation", p.executor != nil).Msg("Pipeline ready")
	return nil
}

// Serve implements suture.Service. It returns ctx.Err() after an ordered
// shutdown when ctx ends. When the capture source fails fatally or runs out
// (an offline capture file), it shuts down the same way and returns
// suture.ErrTerminateSupervisorTree; Err reports the fatal cause, if any.
func (p *Pipeline) Serve(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("pipeline not started: %w", suture.ErrDoNotRestart)
	}
	if p.served {
		p.mu.Unlock()
		return suture.ErrDoNotRestart
	}
	p.served = true
	p.mu.Unlock()

	captureCtx, stopCapture := context.WithCancel(context.Background())
	defer stopCapture()
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	mitigationCtx, stopMitigation := context.WithCancel(context.Background())
	defer stopMitigation()

	loop := capture.NewLoop(p.source, p.onPacket, p.counters, p.cfg.MaxConsecutiveErrors)
	captureDone := make(chan error, 1)
	go func() { captureDone <- loop.Run(captureCtx) }()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = p.worker.Run(workerCtx)
	}()

	var mitigationDone chan struct{}
	if p.executor != nil {
		mitigationDone = make(chan struct{})
		go func() {
			defer close(mitigationDone)
			_ = p.executor.Run(mitigationCtx)
		}()
	}

	var captureErr error
	select {
	case <-ctx.Done():
		stopCapture()
		captureErr = <-captureDone
	case captureErr = <-captureDone:
	}

	switch {
	case captureErr == nil:
		p.logger.Info().Msg("Shutting down pipeline")
	case errors.Is(captureErr, capture.ErrSourceClosed):
		p.logger.Info().Msg("Capture source exhausted, shutting down pipeline")
	default:
		p.setErr(captureErr)
		p.logger.Error().Err(captureErr).Msg("Capture failed, shutting down pipeline")
	}

	deadline := time.Now().Add(p.cfg.GracePeriod)
	graceCtx, cancelGrace := context.WithDeadline(context.Background(), deadline)
	defer cancelGrace()

	stopWorker()
	<-workerDone
	processed, discarded := p.worker.Drain(graceCtx)

	p.bus.Close()

	if p.executor != nil {
		if err := p.executor.Shutdown(graceCtx); err != nil {
			p.logger.Warn().Err(err).Msg("Mitigation did not finish within the grace period")
		}
		stopMitigation()
		<-mitigationDone
	}

	snap := p.counters.Snapshot()
	p.logger.Info().
		Int("drained", processed).
		Int("discarded", discarded).
		Uint64("packets_seen", snap.PacketsSeen).
		Uint64("threats_detected", snap.ThreatsDetected).
		Uint64("alerts_published", snap.AlertsPublished).
		Msg("Pipeline stopped")

	if captureErr != nil {
		return suture.ErrTerminateSupervisorTree
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (p *Pipeline) String() string {
	return "pipeline"
}

// Err returns the fatal error that stopped the pipeline, if any.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pipeline) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// onPacket runs on the capture goroutine and must not block.
func (p *Pipeline) onPacket(rec capture.PacketRecord) {
	s := summary.Summarize(rec)
	if !p.worker.TrySubmit(s) {
		p.counters.PacketDropped()
		p.dropLog.Warn().Int("queue_size", p.cfg.QueueSize).Msg("Analysis queue full, dropping packets")
	}
}

// onVerdict runs on the analysis worker goroutine.
func (p *Pipeline) onVerdict(s summary.TrafficSummary, v analyzer.Verdict) {
	if !v.IsThreat() {
		return
	}

	alert := alertbus.NewAlert(v.Message, v.Severity, v.Source, s.Text)
	p.counters.ThreatDetected(string(alert.Level))

	published, err := p.bus.Publish(alert)
	if err != nil {
		p.logger.Debug().Err(err).Str("message", alert.Message).Msg("Alert not published")
	} else {
		p.logger.Warn().
			Uint64("sequence", published.Sequence).
			Str("message", published.Message).
			Float64("severity", published.Severity).
			Str("source", published.Source).
			Msg("Threat detected")
	}

	if p.executor == nil || !p.executor.ShouldMitigate(v.Source, v.Severity) {
		return
	}
	if !p.executor.Enqueue(v.Source, v.Severity) {
		p.logger.Warn().Str("source", v.Source.String()).Msg("Mitigation request not accepted")
	}
}
