// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})

	Info().Msg("capture started")

	output := buf.String()
	if !strings.Contains(output, "capture started") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected output to contain level, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"DISABLED", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := WithComponent("capture")
	logger.Info().Msg("device opened")

	if !strings.Contains(buf.String(), `"component":"capture"`) {
		t.Errorf("expected component field in output: %s", buf.String())
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx := ContextWithCorrelationID(context.Background(), "abc12345")
	ctx = ContextWithSessionID(ctx, 42)
	Ctx(ctx).Info().Msg("subscriber connected")

	output := buf.String()
	if !strings.Contains(output, `"correlation_id":"abc12345"`) {
		t.Errorf("expected correlation id in output: %s", output)
	}
	if !strings.Contains(output, `"session_id":42`) {
		t.Errorf("expected session id in output: %s", output)
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	t.Parallel()

	a, b := GenerateCorrelationID(), GenerateCorrelationID()
	if len(a) != 8 {
		t.Errorf("expected 8 character id, got %q", a)
	}
	if a == b {
		t.Error("expected distinct correlation ids")
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	logger := slog.New(NewSlogHandler()).With("supervisor", "guardian").WithGroup("event")
	logger.Warn("service failed", "service", "pipeline", "restarts", 2)

	output := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"supervisor":"guardian"`,
		`"event.service":"pipeline"`,
		`"event.restarts":2`,
		"service failed",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}
