// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package logging provides centralized zerolog-based structured logging for Guardian.
//
// The package provides:
//   - JSON output for production, console output for development
//   - A process-wide logger configured once from main via Init
//   - Component loggers (capture, analyzer, alertbus, mitigation, ...)
//   - Context-aware logging carrying correlation and session ids
//   - An slog adapter for Suture v4 supervision events
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("interface", "eth0").Msg("Capture started")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Subscriber write failed")
//
// Always terminate log chains with .Msg() or .Send(); an unterminated event is
// never written.
package logging
