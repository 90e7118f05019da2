// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package main

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/guardian/internal/analyzer"
	"github.com/tomtom215/guardian/internal/capture"
	"github.com/tomtom215/guardian/internal/capture/capturetest"
	"github.com/tomtom215/guardian/internal/journal"
	"github.com/tomtom215/guardian/internal/mitigation"
	"github.com/tomtom215/guardian/internal/summary"
)

// writeConfig writes a guardian.yaml using the analyzer test model and
// returns its path. extra is appended verbatim.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	model, err := filepath.Abs("../../internal/analyzer/testdata/guardian-linear.json")
	if err != nil {
		t.Fatal(err)
	}
	tok, err := filepath.Abs("../../internal/analyzer/testdata/tokenizer.json")
	if err != nil {
		t.Fatal(err)
	}

	yaml := "model:\n  path: " + model + "\n  tokenizer_path: " + tok + "\n" +
		"logging:\n  level: disabled\n" + extra
	path := filepath.Join(t.TempDir(), "guardian.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func summaryText(step capturetest.Step) string {
	return summary.Summarize(step.Record).Text
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "guardian "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestAnalyzeCommand(t *testing.T) {
	cfgPath := writeConfig(t, "")

	tests := []struct {
		name    string
		text    string
		verdict string
	}{
		{
			name:    "telnet syn is a threat",
			text:    summaryText(capturetest.Step{Record: capturetest.Record(capturetest.TCPFrame("203.0.113.7", "10.0.0.5", 51514, 23, capturetest.TCPFlags{SYN: true}, nil))}),
			verdict: "threat",
		},
		{
			name:    "http request is safe",
			text:    summaryText(capturetest.Step{Record: capturetest.Record(capturetest.TCPFrame("198.51.100.4", "10.0.0.5", 40000, 80, capturetest.TCPFlags{ACK: true, PSH: true}, []byte("GET / HTTP/1.1")))}),
			verdict: "safe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "--config", cfgPath, "analyze", tt.text)
			if err != nil {
				t.Fatalf("analyze error = %v", err)
			}
			var res analyzeResult
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("output %q: %v", out, err)
			}
			if res.Verdict != tt.verdict {
				t.Errorf("verdict = %q, want %q (%+v)", res.Verdict, tt.verdict, res)
			}
			if tt.verdict == "threat" && !strings.HasPrefix(res.Message, "THREAT_DETECTED: ") {
				t.Errorf("message = %q", res.Message)
			}
		})
	}
}

func TestAnalyzeCommand_Arguments(t *testing.T) {
	cfgPath := writeConfig(t, "")

	if _, err := execute(t, "--config", cfgPath, "analyze"); err == nil {
		t.Error("analyze without input should fail")
	}
	if _, err := execute(t, "--config", cfgPath, "analyze", "--pcap", "x.pcap", "text"); err == nil {
		t.Error("analyze with text and --pcap should fail")
	}
}

func TestQuarantineCommand_DryRun(t *testing.T) {
	cfgPath := writeConfig(t, "mitigation:\n  allowlist:\n    - 10.0.0.0/8\n")

	tests := []struct {
		addr    string
		outcome mitigation.Outcome
		reason  string
	}{
		{"203.0.113.7", mitigation.OutcomeApplied, ""},
		{"127.0.0.1", mitigation.OutcomeSkipped, mitigation.ReasonLoopback},
		{"10.1.2.3", mitigation.OutcomeSkipped, mitigation.ReasonAllowlisted},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			out, err := execute(t, "--config", cfgPath, "quarantine", "--dry-run", tt.addr)
			if err != nil {
				t.Fatalf("quarantine error = %v", err)
			}
			var rec mitigation.Record
			if err := json.Unmarshal([]byte(out), &rec); err != nil {
				t.Fatalf("output %q: %v", out, err)
			}
			if rec.Outcome != tt.outcome || rec.Reason != tt.reason || rec.Backend != "noop" {
				t.Errorf("record = %+v", rec)
			}
		})
	}
}

func TestQuarantineCommand_InvalidAddress(t *testing.T) {
	out, err := execute(t, "quarantine", "--dry-run", "not-an-ip")
	if err == nil || !strings.Contains(err.Error(), "invalid address") {
		t.Errorf("error = %v", err)
	}
	if out != "" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestQuarantineCommand_Journaled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	cfgPath := writeConfig(t, "journal:\n  enabled: true\n  path: "+dir+"\n")

	if _, err := execute(t, "--config", cfgPath, "quarantine", "--dry-run", "198.51.100.23"); err != nil {
		t.Fatalf("quarantine error = %v", err)
	}

	j, err := journal.Open(journal.Config{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	records, err := j.RecentMitigations(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Target != netip.MustParseAddr("198.51.100.23") {
		t.Errorf("journaled records = %+v", records)
	}
}

func TestServeCommand_MissingDeviceExitsWithError(t *testing.T) {
	cfgPath := writeConfig(t, "capture:\n  interface: guardian-test-nonexistent0\n")

	_, err := execute(t, "--config", cfgPath, "serve")
	if err == nil {
		t.Fatal("serve on a missing device should fail")
	}
	if !strings.Contains(err.Error(), "startup failed") {
		t.Errorf("error = %v", err)
	}
}

func TestTreeConfigCoversGracePeriod(t *testing.T) {
	for _, g := range []time.Duration{0, 5 * time.Second, 30 * time.Second} {
		tc := treeConfig(g)
		if tc.ShutdownTimeout <= drainTimeout(g) {
			t.Errorf("grace %v: tree timeout %v does not cover the drain timeout %v", g, tc.ShutdownTimeout, drainTimeout(g))
		}
	}
}

func TestScoreSource(t *testing.T) {
	a, err := analyzer.Load("../../internal/analyzer/testdata/guardian-linear.json", "../../internal/analyzer/testdata/tokenizer.json", analyzer.Options{})
	if err != nil {
		t.Fatal(err)
	}
	readErr := &capture.CaptureError{Kind: capture.KindRead, Interface: "replay.pcap", Err: errors.New("truncated record")}
	threat := capturetest.Step{Record: capturetest.Record(capturetest.TCPFrame("203.0.113.7", "10.0.0.5", 51514, 23, capturetest.TCPFlags{SYN: true}, nil))}

	tests := []struct {
		name      string
		steps     []capturetest.Step
		wantLines int
		wantKind  capture.Kind
		wantFatal bool
	}{
		{
			name:      "isolated read errors are skipped",
			steps:     []capturetest.Step{threat, {Err: readErr}, threat, {Err: readErr}, threat},
			wantLines: 3,
		},
		{
			name:      "consecutive read errors end the replay",
			steps:     []capturetest.Step{threat, {Err: readErr}, {Err: readErr}, {Err: readErr}, threat},
			wantLines: 1,
			wantKind:  capture.KindTooManyErrors,
			wantFatal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			var out, stderr bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&stderr)
			src := capturetest.NewScriptedSource(false, tt.steps...)

			err := scoreSource(cmd, src, a, &analyzeOptions{threatsOnly: true}, 3)
			if tt.wantFatal {
				var ce *capture.CaptureError
				if !errors.As(err, &ce) || ce.Kind != tt.wantKind || !ce.Fatal {
					t.Fatalf("scoreSource() error = %v, want fatal %v", err, tt.wantKind)
				}
			} else if err != nil {
				t.Fatalf("scoreSource() error = %v", err)
			}

			if got := strings.Count(out.String(), `"verdict": "threat"`); got != tt.wantLines {
				t.Errorf("printed %d threat verdicts, want %d:\n%s", got, tt.wantLines, out.String())
			}
			if !src.IsClosed() {
				t.Error("source not closed after replay")
			}
		})
	}
}
