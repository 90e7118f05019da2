// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	sessionIDKey     contextKey = "session_id"
)

// GenerateCorrelationID returns a short random id for log correlation.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a copy of ctx carrying the correlation id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID returns a copy of ctx with a fresh correlation id.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation id, or "" if absent.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithSessionID tags ctx with a subscriber session id.
func ContextWithSessionID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the subscriber session id and whether it was set.
func SessionIDFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(sessionIDKey).(uint64)
	return id, ok
}

// Ctx returns the global logger enriched with the ids stored in ctx.
//
//	logging.Ctx(ctx).Info().Msg("Subscriber connected")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("correlation_id", id)
	}
	if id, ok := SessionIDFromContext(ctx); ok {
		logCtx = logCtx.Uint64("session_id", id)
	}
	l := logCtx.Logger()
	return &l
}
