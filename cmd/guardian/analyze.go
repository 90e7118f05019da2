// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/guardian/internal/analyzer"
	"github.com/tomtom215/guardian/internal/capture"
	"github.com/tomtom215/guardian/internal/capture/pcapsource"
	"github.com/tomtom215/guardian/internal/metrics"
	"github.com/tomtom215/guardian/internal/summary"
)

type analyzeOptions struct {
	pcapPath    string
	threatsOnly bool
}

// analyzeResult is one line of analyze output.
type analyzeResult struct {
	Text     string  `json:"text"`
	Verdict  string  `json:"verdict"`
	Message  string  `json:"message,omitempty"`
	Severity float64 `json:"severity,omitempty"`
	Source   string  `json:"source,omitempty"`
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Score traffic offline with the configured model",
		Long: `Score a traffic description given as arguments, or every packet of a
pcap file with --pcap, and print one JSON verdict per line. No capture
device is opened and no alerts are published.`,
		Example: `  guardian analyze "tcp 198.51.100.4:51234 > 10.0.0.5:23 flags=S len=60"
  guardian analyze --pcap suspicious.pcap --threats-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.pcapPath == "" && len(args) == 0 {
				return errors.New("give a traffic description or --pcap")
			}
			if opts.pcapPath != "" && len(args) > 0 {
				return errors.New("text arguments and --pcap are mutually exclusive")
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			a, err := analyzer.Load(cfg.Model.Path, cfg.Model.TokenizerPath, analyzerOptions(cfg))
			if err != nil {
				return err
			}

			if opts.pcapPath == "" {
				res, err := analyzeOne(a, summary.TrafficSummary{Text: strings.Join(args, " "), Parsed: true})
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}
			return analyzePcap(cmd, a, opts, cfg.Capture.MaxConsecutiveErrors)
		},
	}
	cmd.Flags().StringVar(&opts.pcapPath, "pcap", "", "Score every packet of this capture file")
	cmd.Flags().BoolVar(&opts.threatsOnly, "threats-only", false, "Print threat verdicts only")
	return cmd
}

func analyzeOne(a *analyzer.Analyzer, s summary.TrafficSummary) (analyzeResult, error) {
	v, err := a.Analyze(s)
	if err != nil {
		return analyzeResult{}, err
	}
	res := analyzeResult{Text: s.Text, Verdict: v.Kind.String()}
	if v.IsThreat() {
		res.Message = v.Message
		res.Severity = v.Severity
		if v.Source.IsValid() {
			res.Source = v.Source.String()
		}
	}
	return res, nil
}

func analyzePcap(cmd *cobra.Command, a *analyzer.Analyzer, opts *analyzeOptions, maxConsecutiveErrors int) error {
	src, err := pcapsource.OpenOffline(opts.pcapPath)
	if err != nil {
		return err
	}
	return scoreSource(cmd, src, a, opts, maxConsecutiveErrors)
}

// scoreSource replays src through a capture loop, so runs of unreadable
// packets end the replay the same way they end live capture. The loop
// closes src.
func scoreSource(cmd *cobra.Command, src capture.Source, a *analyzer.Analyzer, opts *analyzeOptions, maxConsecutiveErrors int) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	counters := metrics.NewCounters()
	var threats, failed int
	var printErr error
	loop := capture.NewLoop(src, func(rec capture.PacketRecord) {
		res, err := analyzeOne(a, summary.Summarize(rec))
		if err != nil {
			failed++
			return
		}
		if res.Verdict == analyzer.KindThreat.String() {
			threats++
		} else if opts.threatsOnly {
			return
		}
		if err := printJSON(cmd, res); err != nil {
			printErr = err
			cancel()
		}
	}, counters, maxConsecutiveErrors)

	err := loop.Run(ctx)
	if printErr != nil {
		return printErr
	}
	if err != nil && !errors.Is(err, capture.ErrSourceClosed) {
		return err
	}

	snap := counters.Snapshot()
	fmt.Fprintf(cmd.ErrOrStderr(), "%d packets, %d threats, %d errors\n", snap.PacketsSeen, threats, failed+int(snap.PacketsSkipped))
	return nil
}
