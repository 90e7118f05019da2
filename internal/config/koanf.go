// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no explicit path is given.
var DefaultConfigPaths = []string{
	"guardian.yaml",
	"guardian.yml",
	"/etc/guardian/guardian.yaml",
	"/etc/guardian/guardian.yml",
}

// ConfigPathEnvVar names the environment variable that overrides the config file path.
const ConfigPathEnvVar = "GUARDIAN_CONFIG"

// envPrefix scopes nested environment overrides, e.g. GUARDIAN_CAPTURE_SNAP_LENGTH.
const envPrefix = "GUARDIAN_"

func defaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			Interface:            "eth0",
			Promiscuous:          true,
			SnapLength:           65535,
			ReadTimeout:          500 * time.Millisecond,
			MaxConsecutiveErrors: 100,
			QueueSize:            1024,
		},
		Model: ModelConfig{
			Threshold: 0.5,
		},
		Bus: BusConfig{
			BufferSize: 100,
			LagPolicy:  "drop_oldest",
		},
		Mitigation: MitigationConfig{
			Enabled:         false, // opt-in: quarantine rewrites host firewall state
			Backend:         "iptables",
			ActionThreshold: 0.9,
			MaxAttempts:     3,
			InitialBackoff:  200 * time.Millisecond,
			CommandTimeout:  5 * time.Second,
			QueueSize:       64,
			RatePerSecond:   5,
			Burst:           10,
			Allowlist:       []string{},
			IPTables: IPTablesConfig{
				Binary:   "iptables",
				Binary6:  "ip6tables",
				Chain:    "INPUT",
				WaitLock: true,
			},
			NFTables: NFTablesConfig{
				Table: "guardian",
				Set:   "quarantine",
			},
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			AllowedOrigins:  []string{},
			ConnectionLimit: 30,
			ReadTimeout:     10 * time.Second,
		},
		Journal: JournalConfig{
			Enabled:   false,
			Path:      "data/journal",
			Retention: 7 * 24 * time.Hour,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "guardian.alerts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Shutdown: ShutdownConfig{
			GracePeriod: 5 * time.Second,
		},
	}
}

// Load reads configuration from defaults, the first config file found, and the
// environment, then validates it. Validation failures are returned as *ConfigError.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips the file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, &ConfigError{Field: "file", Reason: fmt.Sprintf("cannot read %s", configPath), Err: err}
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &ConfigError{Field: "config", Reason: "malformed configuration", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		return envPath
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"mitigation.allowlist",
	"server.allowed_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// legacyEnv maps the historical flat variable names onto config paths.
var legacyEnv = map[string]string{
	"network_interface": "capture.interface",
	"model_path":        "model.path",
	"tokenizer_path":    "model.tokenizer_path",
	"log_level":         "logging.level",
	"log_format":        "logging.format",
	"nats_url":          "nats.url",
}

// envTransformFunc maps environment variable names to koanf paths.
// Returns "" for variables that are not configuration.
//
// GUARDIAN_<SECTION>_<KEY> maps to <section>.<key>; the section is the first
// underscore-separated word so keys may themselves contain underscores.
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)
	if mapped, ok := legacyEnv[lower]; ok {
		return mapped
	}

	prefix := strings.ToLower(envPrefix)
	if !strings.HasPrefix(lower, prefix) || lower == strings.ToLower(ConfigPathEnvVar) {
		return ""
	}
	rest := strings.TrimPrefix(lower, prefix)

	section, field, ok := strings.Cut(rest, "_")
	if !ok || field == "" {
		return ""
	}
	switch section {
	case "mitigation":
		// Nested backend sections: GUARDIAN_MITIGATION_IPTABLES_CHAIN.
		for _, sub := range []string{"iptables", "nftables"} {
			if strings.HasPrefix(field, sub+"_") {
				return section + "." + sub + "." + strings.TrimPrefix(field, sub+"_")
			}
		}
	case "capture", "model", "bus", "server", "journal", "nats", "logging", "shutdown":
	default:
		return ""
	}
	return section + "." + field
}
