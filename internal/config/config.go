// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package config

import (
	"time"
)

// Config holds all application configuration.
//
// Values are layered by Load: built-in defaults, then an optional YAML file,
// then environment variables. The result is validated before it is returned.
type Config struct {
	Capture    CaptureConfig    `koanf:"capture"`
	Model      ModelConfig      `koanf:"model"`
	Bus        BusConfig        `koanf:"bus"`
	Mitigation MitigationConfig `koanf:"mitigation"`
	Server     ServerConfig     `koanf:"server"`
	Journal    JournalConfig    `koanf:"journal"`
	NATS       NATSConfig       `koanf:"nats"`
	Logging    LoggingConfig    `koanf:"logging"`
	Shutdown   ShutdownConfig   `koanf:"shutdown"`
}

// CaptureConfig configures the live packet source.
type CaptureConfig struct {
	Interface   string        `koanf:"interface" validate:"required"`
	Promiscuous bool          `koanf:"promiscuous"`
	SnapLength  int           `koanf:"snap_length" validate:"min=64,max=262144"`
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"min=1ms"`
	BPFFilter   string        `koanf:"bpf_filter"`

	// MaxConsecutiveErrors escalates transient read errors to a fatal capture failure.
	MaxConsecutiveErrors int `koanf:"max_consecutive_errors" validate:"min=1"`

	// QueueSize bounds the summaries waiting for analysis; overflow is dropped and counted.
	QueueSize int `koanf:"queue_size" validate:"min=1"`
}

// ModelConfig locates the inference artifacts and sets the alert threshold.
type ModelConfig struct {
	Path          string  `koanf:"path" validate:"required"`
	TokenizerPath string  `koanf:"tokenizer_path" validate:"required"`
	Threshold     float64 `koanf:"threshold" validate:"gt=0,lte=1"`

	// MaxInputLength overrides the model's own input bound when positive.
	MaxInputLength int `koanf:"max_input_length" validate:"min=0"`
}

// BusConfig configures alert fan-out.
type BusConfig struct {
	BufferSize int    `koanf:"buffer_size" validate:"min=1"`
	LagPolicy  string `koanf:"lag_policy" validate:"oneof=drop_oldest disconnect"`
}

// MitigationConfig configures automated quarantine.
type MitigationConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Backend         string        `koanf:"backend" validate:"oneof=iptables nftables noop"`
	ActionThreshold float64       `koanf:"action_threshold" validate:"gt=0,lte=1"`
	MaxAttempts     int           `koanf:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff  time.Duration `koanf:"initial_backoff" validate:"min=0"`
	CommandTimeout  time.Duration `koanf:"command_timeout" validate:"min=1ms"`
	QueueSize       int           `koanf:"queue_size" validate:"min=1"`
	RatePerSecond   float64       `koanf:"rate_per_second" validate:"gt=0"`
	Burst           int           `koanf:"burst" validate:"min=1"`
	Allowlist       []string      `koanf:"allowlist" validate:"dive,ip|cidr"`

	IPTables IPTablesConfig `koanf:"iptables"`
	NFTables NFTablesConfig `koanf:"nftables"`
}

// IPTablesConfig configures the command-based firewall backend.
type IPTablesConfig struct {
	Binary   string `koanf:"binary"`
	Binary6  string `koanf:"binary6"`
	Chain    string `koanf:"chain"`
	WaitLock bool   `koanf:"wait_lock"`
}

// NFTablesConfig configures the netlink firewall backend.
type NFTablesConfig struct {
	Table string `koanf:"table"`
	Set   string `koanf:"set"`
}

// ServerConfig configures the HTTP listener serving /ws and the metrics surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	ConnectionLimit int           `koanf:"connection_limit" validate:"min=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	TrustProxy bool `koanf:"trust_proxy"`
}

// JournalConfig configures the on-disk alert journal.
type JournalConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Path      string        `koanf:"path" validate:"required_if=Enabled true"`
	Retention time.Duration `koanf:"retention"`
}

// NATSConfig configures alert forwarding to an external NATS server.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"required_if=Enabled true"`
	Subject string `koanf:"subject"`
}

// LoggingConfig mirrors logging.Config for file and environment loading.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ShutdownConfig bounds graceful shutdown.
type ShutdownConfig struct {
	GracePeriod time.Duration `koanf:"grace_period" validate:"min=0"`
}
