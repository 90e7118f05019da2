// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/eventprocessor"
	"github.com/tomtom215/guardian/internal/journal"
	"github.com/tomtom215/guardian/internal/metrics"
	"github.com/tomtom215/guardian/internal/mitigation"
	"github.com/tomtom215/guardian/internal/validation"
)

// History limits for /api/v1/alerts and /api/v1/mitigations.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// HistoryStore is the read side of the alert journal.
type HistoryStore interface {
	RecentAlerts(ctx context.Context, limit int) ([]alertbus.Alert, error)
	RecentMitigations(ctx context.Context, limit int) ([]mitigation.Record, error)
	Stats() journal.Stats
}

// ForwarderStatsProvider reports NATS forwarding activity.
type ForwarderStatsProvider interface {
	Stats() eventprocessor.ForwarderStats
}

// BusStats describes the alert bus.
type BusStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	LagPolicy   string `json:"lag_policy"`
	Closed      bool   `json:"closed"`
}

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Pipeline  metrics.Snapshot               `json:"pipeline"`
	Bus       BusStats                       `json:"bus"`
	Journal   *journal.Stats                 `json:"journal,omitempty"`
	Forwarder *eventprocessor.ForwarderStats `json:"forwarder,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status      string  `json:"status"`
	Uptime      float64 `json:"uptime_seconds"`
	Subscribers int     `json:"subscribers"`
}

type historyRequest struct {
	Limit int `validate:"min=1,max=500"`
}

// Handler serves the JSON endpoints.
type Handler struct {
	counters  *metrics.Counters
	bus       *alertbus.Bus
	history   HistoryStore
	forwarder ForwarderStatsProvider
	startTime time.Time
}

// NewHandler creates a handler. history and forwarder may be nil.
func NewHandler(counters *metrics.Counters, bus *alertbus.Bus, history HistoryStore, forwarder ForwarderStatsProvider) *Handler {
	return &Handler{
		counters:  counters,
		bus:       bus,
		history:   history,
		forwarder: forwarder,
		startTime: time.Now(),
	}
}

// Health answers 200 while the bus is open and 503 once shutdown has closed it.
//
// @Summary Liveness and subscriber count
// @Description Returns 503 with status "shutting_down" once the alert bus has closed.
// @Tags Core
// @Produce json
// @Success 200 {object} Response{data=HealthResponse} "Pipeline running"
// @Failure 503 {object} Response{data=HealthResponse} "Shutting down"
// @Router /healthz [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "healthy",
		Uptime:      time.Since(h.startTime).Seconds(),
		Subscribers: h.bus.SubscriberCount(),
	}
	status := http.StatusOK
	if h.bus.Closed() {
		resp.Status = "shutting_down"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, &Response{
		Status:   "success",
		Data:     resp,
		Metadata: Metadata{Timestamp: time.Now().UTC()},
	})
}

// Stats returns the pipeline counter snapshot.
//
// @Summary Pipeline statistics
// @Description Counter snapshot plus bus, journal and forwarder statistics. Journal and forwarder are omitted when disabled.
// @Tags Core
// @Produce json
// @Success 200 {object} Response{data=StatsResponse}
// @Failure 429 {object} Response "Rate limited"
// @Router /api/v1/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Pipeline: h.counters.Snapshot(),
		Bus: BusStats{
			Subscribers: h.bus.SubscriberCount(),
			Published:   h.bus.Published(),
			LagPolicy:   h.bus.Policy().String(),
			Closed:      h.bus.Closed(),
		},
	}
	if h.history != nil {
		js := h.history.Stats()
		resp.Journal = &js
	}
	if h.forwarder != nil {
		fs := h.forwarder.Stats()
		resp.Forwarder = &fs
	}
	respondData(w, resp, nil)
}

// Alerts returns recent journaled alerts, newest first.
//
// @Summary Recent alerts
// @Tags History
// @Produce json
// @Param limit query int false "Maximum alerts to return (1-500)" default(50)
// @Success 200 {object} Response{data=[]alertbus.Alert}
// @Failure 400 {object} Response "Invalid limit"
// @Failure 429 {object} Response "Rate limited"
// @Failure 500 {object} Response "Journal read failed"
// @Failure 503 {object} Response "Journal not enabled"
// @Router /api/v1/alerts [get]
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.historyLimit(w, r)
	if !ok {
		return
	}
	alerts, err := h.history.RecentAlerts(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeJournalError, "Failed to read alert history", err)
		return
	}
	if alerts == nil {
		alerts = []alertbus.Alert{}
	}
	n := len(alerts)
	respondData(w, alerts, &n)
}

// Mitigations returns recent mitigation records, newest first.
//
// @Summary Recent mitigation records
// @Tags History
// @Produce json
// @Param limit query int false "Maximum records to return (1-500)" default(50)
// @Success 200 {object} Response{data=[]mitigation.Record}
// @Failure 400 {object} Response "Invalid limit"
// @Failure 429 {object} Response "Rate limited"
// @Failure 500 {object} Response "Journal read failed"
// @Failure 503 {object} Response "Journal not enabled"
// @Router /api/v1/mitigations [get]
func (h *Handler) Mitigations(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.historyLimit(w, r)
	if !ok {
		return
	}
	records, err := h.history.RecentMitigations(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeJournalError, "Failed to read mitigation history", err)
		return
	}
	if records == nil {
		records = []mitigation.Record{}
	}
	n := len(records)
	respondData(w, records, &n)
}

// historyLimit checks the journal is configured and parses ?limit. It writes
// the error response itself and reports false when the request must stop.
func (h *Handler) historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, CodeJournalDisabled, "The alert journal is not enabled", nil)
		return 0, false
	}

	req := historyRequest{Limit: DefaultHistoryLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, CodeValidation, "limit must be an integer", nil)
			return 0, false
		}
		req.Limit = n
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondJSON(w, http.StatusBadRequest, &Response{
			Status:   "error",
			Metadata: Metadata{Timestamp: time.Now().UTC()},
			Error:    &Error{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details},
		})
		return 0, false
	}
	return req.Limit, true
}
