// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/logging"
)

// DefaultHandshakeTimeout bounds the upgrade handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// Config configures a Handler.
type Config struct {
	// AllowedOrigins lists accepted Origin headers. "*" accepts any origin.
	// An empty list accepts every connection, including clients that send
	// no Origin header.
	AllowedOrigins   []string
	HandshakeTimeout time.Duration
}

// Handler accepts WebSocket subscribers and runs one session per connection.
type Handler struct {
	bus      *alertbus.Bus
	cfg      Config
	upgrader websocket.Upgrader

	nextID atomic.Uint64
	active atomic.Int64
	wg     sync.WaitGroup
}

// NewHandler creates a handler that subscribes each connection to bus.
func NewHandler(bus *alertbus.Bus, cfg Config) *Handler {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	h := &Handler{bus: bus, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	return h
}

// ServeHTTP upgrades the request and blocks for the life of the session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.bus.Closed() {
		http.Error(w, "alert stream unavailable", http.StatusServiceUnavailable)
		return
	}

	// Counted before Upgrade: Wait covers handshakes still in progress.
	h.wg.Add(1)
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	h.active.Add(1)
	defer h.active.Add(-1)

	sub := h.bus.Subscribe()
	id := h.nextID.Add(1)
	logger := logging.WithComponent("websocket").With().
		Uint64("session", id).
		Uint64("subscriber", sub.ID()).
		Str("remote", r.RemoteAddr).
		Logger()
	logger.Info().Msg("Subscriber session started")

	newSession(id, conn, h.bus, sub, logger).run(r.Context())
}

// ActiveSessions returns the number of running sessions.
func (h *Handler) ActiveSessions() int {
	return int(h.active.Load())
}

// Wait blocks until every session has ended or ctx is done. Sessions end on
// their own once the bus is closed.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Str("remote", r.RemoteAddr).Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and caps the length.
func sanitizeLogValue(s string) string {
	const maxLen = 128
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= maxLen {
			break
		}
	}
	return b.String()
}
