// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

//go:build nats

package eventprocessor

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/guardian/internal/logging"
)

// LoggerAdapter routes Watermill logs through the zerolog global logger.
type LoggerAdapter struct {
	logger zerolog.Logger
}

// NewLoggerAdapter returns an adapter tagged with component=watermill.
func NewLoggerAdapter() *LoggerAdapter {
	return &LoggerAdapter{logger: logging.WithComponent("watermill")}
}

func (l *LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error().Err(err).Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l *LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.logger.Info().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l *LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l *LoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.logger.Trace().Fields(map[string]interface{}(fields)).Msg(msg)
}

func (l *LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LoggerAdapter{logger: l.logger.With().Fields(map[string]interface{}(fields)).Logger()}
}
