// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/analyzer"
	"github.com/tomtom215/guardian/internal/capture"
	"github.com/tomtom215/guardian/internal/capture/pcapsource"
	"github.com/tomtom215/guardian/internal/config"
	"github.com/tomtom215/guardian/internal/eventprocessor"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
	"github.com/tomtom215/guardian/internal/mitigation"
	"github.com/tomtom215/guardian/internal/pipeline"
	"github.com/tomtom215/guardian/internal/supervisor"
)

func captureConfig(cfg *config.Config) capture.Config {
	return capture.Config{
		Interface:   cfg.Capture.Interface,
		Promiscuous: cfg.Capture.Promiscuous,
		SnapLength:  cfg.Capture.SnapLength,
		ReadTimeout: cfg.Capture.ReadTimeout,
		BPFFilter:   cfg.Capture.BPFFilter,
	}
}

func openLiveSource(cfg capture.Config) (capture.Source, error) {
	src, err := pcapsource.Open(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func analyzerOptions(cfg *config.Config) analyzer.Options {
	return analyzer.Options{
		Threshold:      cfg.Model.Threshold,
		MaxInputLength: cfg.Model.MaxInputLength,
	}
}

func loadAnalyzer(cfg *config.Config) pipeline.ScorerLoader {
	return func() (analyzer.Scorer, error) {
		a, err := analyzer.Load(cfg.Model.Path, cfg.Model.TokenizerPath, analyzerOptions(cfg))
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

func newBus(cfg *config.Config, counters *metrics.Counters) (*alertbus.Bus, error) {
	policy, err := alertbus.ParseLagPolicy(cfg.Bus.LagPolicy)
	if err != nil {
		return nil, err
	}
	return alertbus.New(alertbus.Config{
		BufferSize: cfg.Bus.BufferSize,
		LagPolicy:  policy,
	}, counters), nil
}

func newPipeline(cfg *config.Config, bus *alertbus.Bus, counters *metrics.Counters) *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		Capture:              captureConfig(cfg),
		MaxConsecutiveErrors: cfg.Capture.MaxConsecutiveErrors,
		QueueSize:            cfg.Capture.QueueSize,
		GracePeriod:          cfg.Shutdown.GracePeriod,
	}, bus, counters, openLiveSource, loadAnalyzer(cfg))
}

// newFirewall selects the quarantine backend.
func newFirewall(m config.MitigationConfig) (mitigation.Firewall, error) {
	switch m.Backend {
	case "iptables":
		return mitigation.NewCommandFirewall(mitigation.CommandConfig{
			Binary:   m.IPTables.Binary,
			Binary6:  m.IPTables.Binary6,
			Chain:    m.IPTables.Chain,
			WaitLock: m.IPTables.WaitLock,
		}, nil), nil
	case "nftables":
		return mitigation.NewNFTablesFirewall(m.NFTables.Table, m.NFTables.Set), nil
	case "noop":
		return mitigation.NewNoopFirewall(), nil
	default:
		return nil, fmt.Errorf("unknown mitigation backend %q", m.Backend)
	}
}

func newExecutor(fw mitigation.Firewall, m config.MitigationConfig, counters *metrics.Counters) (*mitigation.Executor, error) {
	allow, err := mitigation.ParseAllowlist(m.Allowlist)
	if err != nil {
		return nil, &config.ConfigError{Field: "mitigation.allowlist", Reason: "invalid entry", Err: err}
	}
	return mitigation.NewExecutor(fw, mitigation.Config{
		ActionThreshold: m.ActionThreshold,
		MaxAttempts:     m.MaxAttempts,
		InitialBackoff:  m.InitialBackoff,
		CommandTimeout:  m.CommandTimeout,
		QueueSize:       m.QueueSize,
		RatePerSecond:   m.RatePerSecond,
		Burst:           m.Burst,
		Allowlist:       allow,
	}, counters), nil
}

// newNATSForwarder connects to NATS and returns the forwarder plus a close
// function. It returns a nil forwarder when the binary was built without the
// nats tag or the server is unreachable.
func newNATSForwarder(cfg *config.Config, bus *alertbus.Bus) (*eventprocessor.Forwarder, func()) {
	pub, err := eventprocessor.NewPublisher(eventprocessor.DefaultPublisherConfig(cfg.NATS.URL), nil)
	switch {
	case errors.Is(err, eventprocessor.ErrNATSUnavailable):
		logging.Warn().Msg("NATS forwarding requested but this binary was built without the nats tag")
		return nil, func() {}
	case err != nil:
		logging.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unreachable, alert forwarding disabled")
		return nil, func() {}
	}

	pub.SetCircuitBreaker(eventprocessor.NewCircuitBreaker(eventprocessor.DefaultCircuitBreakerConfig()))
	fwd := eventprocessor.NewForwarder(bus, pub, eventprocessor.ForwarderConfig{
		Subject:      cfg.NATS.Subject,
		DrainTimeout: drainTimeout(cfg.Shutdown.GracePeriod),
	})
	return fwd, func() {
		if err := pub.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing NATS publisher")
		}
	}
}

// treeConfig sizes supervisor shutdown so the pipeline's grace period and
// every drain both fit inside it.
func treeConfig(grace time.Duration) supervisor.TreeConfig {
	tc := supervisor.DefaultTreeConfig()
	if floor := drainTimeout(grace) + 5*time.Second; tc.ShutdownTimeout < floor {
		tc.ShutdownTimeout = floor
	}
	return tc
}

// drainTimeout bounds how long bus consumers (WebSocket sessions, the
// journal recorder, the NATS forwarder) keep running after shutdown starts.
// They end only after the pipeline has drained and closed the bus.
func drainTimeout(grace time.Duration) time.Duration {
	if grace <= 0 {
		grace = pipeline.DefaultGracePeriod
	}
	return 2*grace + 5*time.Second
}
