// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

/*
Package api provides the Guardian HTTP surface using the chi router.

Routes:

	GET /ws                   alert stream (WebSocket, per-IP connection rate limit)
	GET /healthz              liveness, uptime and subscriber count
	GET /metrics              Prometheus exposition
	GET /api/v1/stats         pipeline counter snapshot plus journal/forwarder stats
	GET /api/v1/alerts        recent alerts from the journal, newest first
	GET /api/v1/mitigations   recent mitigation records, newest first

Every /api/v1 response uses the same envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
	{"status":"error","data":null,"error":{"code":"...","message":"..."},"metadata":{...}}

The history endpoints accept ?limit=N (1..MaxHistoryLimit, default
DefaultHistoryLimit) and answer 503 JOURNAL_DISABLED when no journal is
configured.

Middleware order: request id, real ip (only with TrustProxy), panic
recovery, CORS (only with AllowedOrigins), then per-group
rate limiting and Prometheus instrumentation. /ws sits outside the
instrumentation group: the WebSocket upgrade hijacks the original
ResponseWriter.
*/
package api
