// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches the *http.Server lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the HTTP listener serving /ws and the metrics
// surface as a supervised service.
//
// http.Server.Shutdown does not wait for hijacked connections, so WebSocket
// sessions are drained separately through the function passed to WithDrain
// (websocket.Handler.Wait). Sessions end on their own once the alert bus
// closes; the drain only bounds how long shutdown waits for them.
//
//	server := &http.Server{Addr: ":8080", Handler: router}
//	svc := services.NewHTTPServerService(server, 10*time.Second).WithDrain(wsHandler.Wait)
//	tree.AddAPIService(svc)
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	drain           func(ctx context.Context) error
	name            string
}

// NewHTTPServerService creates a new HTTP server service wrapper. A
// non-positive shutdownTimeout defaults to 10 seconds.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// WithDrain sets a function that waits for hijacked connections after
// Shutdown. It shares the shutdown timeout.
func (h *HTTPServerService) WithDrain(drain func(ctx context.Context) error) *HTTPServerService {
	h.drain = drain
	return h
}

// Serve implements suture.Service.
//
// Returns ctx.Err() after a graceful shutdown, or an error if the listener
// fails. http.ErrServerClosed is expected on shutdown and not reported.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh

		if h.drain != nil {
			if err := h.drain(shutdownCtx); err != nil {
				return fmt.Errorf("websocket sessions did not drain: %w", err)
			}
		}
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture logging.
func (h *HTTPServerService) String() string {
	return h.name
}
