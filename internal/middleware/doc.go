// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

/*
Package middleware provides HTTP middleware for the Guardian API surface.

Key Components:

  - RequestID: X-Request-ID propagation; the ID doubles as the logging
    correlation id for everything the request does
  - PrometheusMetrics: request count, latency histogram and in-flight gauge,
    labelled by chi route pattern

Both are written as http.HandlerFunc decorators and adapted to chi's
func(http.Handler) http.Handler form by the api package:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(chiMiddleware(middleware.PrometheusMetrics))
	    r.Get("/stats", h.Stats)
	})

PrometheusMetrics wraps the ResponseWriter, so it must not sit in front of
/ws: the WebSocket upgrade needs the original writer's Hijack method.
*/
package middleware
