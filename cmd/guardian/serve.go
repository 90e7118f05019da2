// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/guardian/internal/api"
	"github.com/tomtom215/guardian/internal/journal"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
	"github.com/tomtom215/guardian/internal/supervisor"
	"github.com/tomtom215/guardian/internal/supervisor/services"
	"github.com/tomtom215/guardian/internal/websocket"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the detection pipeline and the alert stream",
		Long: `Open the capture device, load the model and start streaming alerts on
GET /ws. Runs until SIGINT or SIGTERM, or until packet capture fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(opts)
		},
	}
}

//nolint:gocyclo // sequential startup wiring
func runServe(opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logging.Info().
		Str("version", version).
		Str("interface", cfg.Capture.Interface).
		Str("model", cfg.Model.Path).
		Bool("mitigation", cfg.Mitigation.Enabled).
		Bool("journal", cfg.Journal.Enabled).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Starting Guardian")

	counters := metrics.NewCounters()
	bus, err := newBus(cfg, counters)
	if err != nil {
		return err
	}

	var j *journal.Journal
	if cfg.Journal.Enabled {
		j, err = journal.Open(journal.Config{
			Path:      cfg.Journal.Path,
			Retention: cfg.Journal.Retention,
		})
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() {
			if err := j.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing journal")
			}
		}()
	}

	var (
		history  api.HistoryStore
		recorder *journal.Recorder
	)
	if j != nil {
		recorder = journal.NewRecorder(j, bus, journal.DefaultGCInterval).
			WithDrainTimeout(drainTimeout(cfg.Shutdown.GracePeriod))
		history = j
	}

	p := newPipeline(cfg, bus, counters)
	if cfg.Mitigation.Enabled {
		fw, err := newFirewall(cfg.Mitigation)
		if err != nil {
			return err
		}
		executor, err := newExecutor(fw, cfg.Mitigation, counters)
		if err != nil {
			return err
		}
		if recorder != nil {
			executor.OnRecord(recorder.RecordMitigation)
		}
		if err := p.SetExecutor(executor); err != nil {
			return err
		}
	}
	if err := p.Start(); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig(cfg.Shutdown.GracePeriod))
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Delivery subscribers first so they see the earliest alerts.
	if recorder != nil {
		tree.AddDeliveryService(recorder)
	}

	var forwarderStats api.ForwarderStatsProvider
	if cfg.NATS.Enabled {
		fwd, closeFwd := newNATSForwarder(cfg, bus)
		defer closeFwd()
		if fwd != nil {
			tree.AddDeliveryService(fwd)
			forwarderStats = fwd
		}
	}

	tree.AddPipelineService(services.NewPipelineService(p, func(err error) {
		if err != nil {
			logging.Error().Err(err).Msg("Pipeline stopped, shutting down")
		}
		cancel()
	}))

	wsHandler := websocket.NewHandler(bus, websocket.Config{AllowedOrigins: cfg.Server.AllowedOrigins})
	apiCfg := api.DefaultConfig()
	apiCfg.ConnectionLimit = cfg.Server.ConnectionLimit
	apiCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	apiCfg.TrustProxy = cfg.Server.TrustProxy
	router := api.NewRouter(apiCfg, api.NewHandler(counters, bus, history, forwarderStats), wsHandler)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(srv, drainTimeout(cfg.Shutdown.GracePeriod)).
		WithDrain(wsHandler.Wait))

	logging.Info().Str("addr", srv.Addr).Msg("Serving alerts on /ws")
	errCh := tree.ServeBackground(ctx)

	<-ctx.Done()
	logging.Info().Msg("Shutting down")

	select {
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			logging.Warn().Err(err).Msg("Supervisor tree stopped with error")
		}
	case <-time.After(treeConfig(cfg.Shutdown.GracePeriod).ShutdownTimeout + 5*time.Second):
		logging.Error().Msg("Supervisor tree did not stop in time")
	}
	if report, err := tree.UnstoppedServiceReport(); err == nil {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop")
		}
	}

	if err := p.Err(); err != nil {
		return fmt.Errorf("packet capture failed: %w", err)
	}
	logging.Info().Msg("Guardian stopped")
	return nil
}
