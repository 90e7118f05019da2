// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/guardian/internal/metrics"
	"github.com/tomtom215/guardian/internal/middleware"
)

// Config holds per-client rate limits and the cross-origin policy.
type Config struct {
	// ConnectionLimit caps new /ws connections per client IP per
	// ConnectionWindow. Zero disables the limit.
	ConnectionLimit  int
	ConnectionWindow time.Duration

	// RequestLimit caps /api/v1 requests per client IP per RequestWindow.
	// Zero disables the limit.
	RequestLimit  int
	RequestWindow time.Duration

	// AllowedOrigins lists the browser origins allowed to call /api/v1 and
	// /healthz cross-origin. Empty disables CORS headers entirely.
	AllowedOrigins []string

	// TrustProxy honours X-Forwarded-For and X-Real-IP when resolving the
	// client address. Only set it behind a reverse proxy that overwrites
	// those headers; otherwise clients can pick their own rate limit key.
	TrustProxy bool
}

// DefaultConfig returns the limits used when the server config leaves them unset.
func DefaultConfig() Config {
	return Config{
		ConnectionLimit:  30,
		ConnectionWindow: time.Minute,
		RequestLimit:     300,
		RequestWindow:    time.Minute,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// NewRouter builds the HTTP surface. ws serves GET /ws.
func NewRouter(cfg Config, h *Handler, ws http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(corsHandler(cfg.AllowedOrigins))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
	})

	// WebSocket: rate limited on connection attempts, never instrumented
	// (the metrics writer cannot be hijacked).
	r.With(rateLimit(cfg.ConnectionLimit, cfg.ConnectionWindow, "/ws")).Get("/ws", ws.ServeHTTP)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(cfg.RequestLimit, cfg.RequestWindow, "/api/v1"))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/stats", h.Stats)
		r.Get("/alerts", h.Alerts)
		r.Get("/mitigations", h.Mitigations)
	})

	return r
}

// corsHandler allows read-only cross-origin calls from origins.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	})
}

// rateLimit returns a per-IP httprate limiter, or a pass-through when limit
// is not positive.
func rateLimit(limit int, window time.Duration, route string) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(route).Inc()
			respondError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many requests", nil)
		}),
	)
}
