// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeModelFiles creates placeholder model artifacts and points the legacy
// environment variables at them.
func writeModelFiles(t *testing.T) (modelPath, tokenizerPath string) {
	t.Helper()
	dir := t.TempDir()
	modelPath = filepath.Join(dir, "model.json")
	tokenizerPath = filepath.Join(dir, "tokenizer.json")
	for _, p := range []string{modelPath, tokenizerPath} {
		if err := os.WriteFile(p, []byte("{}"), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	t.Setenv("MODEL_PATH", modelPath)
	t.Setenv("TOKENIZER_PATH", tokenizerPath)
	return modelPath, tokenizerPath
}

func TestLoadFile_Defaults(t *testing.T) {
	modelPath, _ := writeModelFiles(t)

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Capture.Interface != "eth0" {
		t.Errorf("Capture.Interface = %q, want eth0", cfg.Capture.Interface)
	}
	if cfg.Capture.SnapLength != 65535 {
		t.Errorf("Capture.SnapLength = %d, want 65535", cfg.Capture.SnapLength)
	}
	if !cfg.Capture.Promiscuous {
		t.Error("Capture.Promiscuous should default to true")
	}
	if cfg.Model.Path != modelPath {
		t.Errorf("Model.Path = %q, want %q", cfg.Model.Path, modelPath)
	}
	if cfg.Bus.LagPolicy != "drop_oldest" {
		t.Errorf("Bus.LagPolicy = %q, want drop_oldest", cfg.Bus.LagPolicy)
	}
	if cfg.Mitigation.Enabled {
		t.Error("Mitigation should be disabled by default")
	}
	if cfg.Mitigation.MaxAttempts != 3 {
		t.Errorf("Mitigation.MaxAttempts = %d, want 3", cfg.Mitigation.MaxAttempts)
	}
	if cfg.Shutdown.GracePeriod != 5*time.Second {
		t.Errorf("Shutdown.GracePeriod = %v, want 5s", cfg.Shutdown.GracePeriod)
	}
	if cfg.Server.TrustProxy {
		t.Error("Server.TrustProxy should default to false")
	}
}

func TestLoadFile_LegacyInterfaceEnv(t *testing.T) {
	writeModelFiles(t)
	t.Setenv("NETWORK_INTERFACE", "wlan0")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Capture.Interface != "wlan0" {
		t.Errorf("Capture.Interface = %q, want wlan0", cfg.Capture.Interface)
	}
}

func TestLoadFile_NestedEnv(t *testing.T) {
	writeModelFiles(t)
	t.Setenv("GUARDIAN_BUS_LAG_POLICY", "disconnect")
	t.Setenv("GUARDIAN_MITIGATION_ENABLED", "true")
	t.Setenv("GUARDIAN_MITIGATION_IPTABLES_CHAIN", "GUARDIAN")
	t.Setenv("GUARDIAN_MITIGATION_ALLOWLIST", "10.0.0.1, 192.168.0.0/16")
	t.Setenv("GUARDIAN_SHUTDOWN_GRACE_PERIOD", "2s")
	t.Setenv("GUARDIAN_SERVER_TRUST_PROXY", "true")
	t.Setenv("GUARDIAN_SERVER_ALLOWED_ORIGINS", "https://soc.example.com")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Bus.LagPolicy != "disconnect" {
		t.Errorf("Bus.LagPolicy = %q, want disconnect", cfg.Bus.LagPolicy)
	}
	if !cfg.Mitigation.Enabled {
		t.Error("Mitigation.Enabled should be true")
	}
	if cfg.Mitigation.IPTables.Chain != "GUARDIAN" {
		t.Errorf("IPTables.Chain = %q, want GUARDIAN", cfg.Mitigation.IPTables.Chain)
	}
	if len(cfg.Mitigation.Allowlist) != 2 || cfg.Mitigation.Allowlist[1] != "192.168.0.0/16" {
		t.Errorf("Allowlist = %v", cfg.Mitigation.Allowlist)
	}
	if cfg.Shutdown.GracePeriod != 2*time.Second {
		t.Errorf("GracePeriod = %v, want 2s", cfg.Shutdown.GracePeriod)
	}
	if !cfg.Server.TrustProxy {
		t.Error("Server.TrustProxy should be true")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://soc.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	writeModelFiles(t)
	path := filepath.Join(t.TempDir(), "guardian.yaml")
	yaml := `
capture:
  interface: enp3s0
  bpf_filter: "tcp or udp"
bus:
  buffer_size: 8
mitigation:
  backend: nftables
  nftables:
    table: edge
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Capture.Interface != "enp3s0" {
		t.Errorf("Capture.Interface = %q", cfg.Capture.Interface)
	}
	if cfg.Capture.BPFFilter != "tcp or udp" {
		t.Errorf("Capture.BPFFilter = %q", cfg.Capture.BPFFilter)
	}
	if cfg.Bus.BufferSize != 8 {
		t.Errorf("Bus.BufferSize = %d", cfg.Bus.BufferSize)
	}
	if cfg.Mitigation.NFTables.Table != "edge" || cfg.Mitigation.NFTables.Set != "quarantine" {
		t.Errorf("NFTables = %+v", cfg.Mitigation.NFTables)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantField string
	}{
		{
			name:      "missing model path",
			env:       map[string]string{"MODEL_PATH": ""},
			wantField: "model.path",
		},
		{
			name:      "model file does not exist",
			env:       map[string]string{"MODEL_PATH": "/nonexistent/model.json"},
			wantField: "model.path",
		},
		{
			name:      "unknown lag policy",
			env:       map[string]string{"GUARDIAN_BUS_LAG_POLICY": "block"},
			wantField: "bus.lagpolicy",
		},
		{
			name:      "threshold out of range",
			env:       map[string]string{"GUARDIAN_MODEL_THRESHOLD": "1.5"},
			wantField: "model.threshold",
		},
		{
			name:      "zero alert threshold",
			env:       map[string]string{"GUARDIAN_MODEL_THRESHOLD": "0"},
			wantField: "model.threshold",
		},
		{
			name:      "zero action threshold",
			env:       map[string]string{"GUARDIAN_MITIGATION_ACTION_THRESHOLD": "0"},
			wantField: "mitigation.actionthreshold",
		},
		{
			name:      "empty interface",
			env:       map[string]string{"NETWORK_INTERFACE": ""},
			wantField: "capture.interface",
		},
		{
			name:      "bad allowlist entry",
			env:       map[string]string{"GUARDIAN_MITIGATION_ALLOWLIST": "not-an-ip"},
			wantField: "mitigation.allowlist[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeModelFiles(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadFile("")
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q (%v)", cfgErr.Field, tt.wantField, err)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NETWORK_INTERFACE", "capture.interface"},
		{"MODEL_PATH", "model.path"},
		{"GUARDIAN_CAPTURE_SNAP_LENGTH", "capture.snap_length"},
		{"GUARDIAN_MITIGATION_NFTABLES_SET", "mitigation.nftables.set"},
		{"GUARDIAN_MITIGATION_MAX_ATTEMPTS", "mitigation.max_attempts"},
		{"GUARDIAN_CONFIG", ""},
		{"GUARDIAN_UNKNOWN_KEY", ""},
		{"GUARDIAN_BUS", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.in); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
