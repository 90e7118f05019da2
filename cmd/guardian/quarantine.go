// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package main

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/guardian/internal/journal"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/mitigation"
)

type quarantineOptions struct {
	dryRun  bool
	backend string
	timeout time.Duration
}

func newQuarantineCmd(root *rootOptions) *cobra.Command {
	opts := &quarantineOptions{}
	cmd := &cobra.Command{
		Use:   "quarantine <addr>",
		Short: "Block one source address at the host firewall",
		Long: `Quarantine an address with the configured mitigation backend, applying
the same allowlist, retry and idempotence rules as automated mitigation.
The resulting record is printed as JSON and written to the journal when
it is enabled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := runQuarantine(cmd.Context(), root, opts, args[0])
			if rec.Started.IsZero() {
				return err
			}
			if encErr := printJSON(cmd, rec); encErr != nil {
				return encErr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Use the noop backend; no firewall change is made")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Override mitigation.backend (iptables, nftables, noop)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Give up after this long")
	return cmd
}

func runQuarantine(ctx context.Context, root *rootOptions, opts *quarantineOptions, target string) (mitigation.Record, error) {
	addr, err := netip.ParseAddr(target)
	if err != nil {
		return mitigation.Record{}, fmt.Errorf("invalid address %q: %w", target, err)
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return mitigation.Record{}, err
	}
	m := cfg.Mitigation
	if opts.backend != "" {
		m.Backend = opts.backend
	}
	if opts.dryRun {
		m.Backend = "noop"
	}

	fw, err := newFirewall(m)
	if err != nil {
		return mitigation.Record{}, err
	}
	executor, err := newExecutor(fw, m, nil)
	if err != nil {
		return mitigation.Record{}, err
	}

	if cfg.Journal.Enabled {
		// A running serve holds the journal lock; the record is still printed.
		j, err := journal.Open(journal.Config{Path: cfg.Journal.Path, Retention: cfg.Journal.Retention})
		if err != nil {
			logging.Warn().Err(err).Msg("Journal unavailable, record not persisted")
		} else {
			defer func() { _ = j.Close() }()
			executor.OnRecord(func(r mitigation.Record) {
				if err := j.RecordMitigation(r); err != nil {
					logging.Warn().Err(err).Msg("Failed to journal mitigation")
				}
			})
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	return executor.Mitigate(ctx, addr)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
