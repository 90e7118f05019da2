// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/guardian/internal/config"
	"github.com/tomtom215/guardian/internal/logging"
)

// Build information, set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "guardian",
		Short: "Real-time network threat detection and mitigation",
		Long: `Guardian captures live traffic, scores each packet with a local model,
streams alerts to WebSocket subscribers and optionally quarantines
hostile sources at the host firewall.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate(fmt.Sprintf("guardian %s (commit %s, built %s)\n", version, commit, date))
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to the config file (default: $"+config.ConfigPathEnvVar+" or ./guardian.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")

	cmd.AddCommand(
		newServeCmd(opts),
		newQuarantineCmd(opts),
		newAnalyzeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig loads and validates configuration, then initializes logging
// from it.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	logCfg.Output = os.Stderr
	logging.Init(logCfg)
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "guardian %s\ncommit: %s\nbuilt:  %s\n", version, commit, date)
		},
	}
}
