// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package eventprocessor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/guardian/internal/alertbus"
)

// EventTypeAlert identifies forwarded threat alerts.
const EventTypeAlert = "alert"

// AlertEvent is the wire format published for external dashboards.
type AlertEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	Sensor     string    `json:"sensor"`
	Sequence   uint64    `json:"sequence"`
	Message    string    `json:"message"`
	Severity   float64   `json:"severity"`
	Level      string    `json:"level"`
	Source     string    `json:"source,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Status     string    `json:"status"`
	DetectedAt time.Time `json:"detected_at"`
}

// NewAlertEvent converts a published alert. sensor names the reporting host.
func NewAlertEvent(a alertbus.Alert, sensor string) AlertEvent {
	return AlertEvent{
		EventID:    a.ID.String(),
		Type:       EventTypeAlert,
		Sensor:     sensor,
		Sequence:   a.Sequence,
		Message:    a.Message,
		Severity:   a.Severity,
		Level:      string(a.Level),
		Source:     a.Source,
		Summary:    a.Summary,
		Status:     string(a.Status),
		DetectedAt: a.DetectedAt,
	}
}

// Validate checks the fields dashboards rely on.
func (e *AlertEvent) Validate() error {
	var errs []error
	if e.EventID == "" {
		errs = append(errs, errors.New("event_id is required"))
	}
	if e.Message == "" {
		errs = append(errs, errors.New("message is required"))
	}
	if e.Severity < 0 || e.Severity > 1 {
		errs = append(errs, fmt.Errorf("severity %v out of range [0,1]", e.Severity))
	}
	return errors.Join(errs...)
}

// Subject returns the subject for e under prefix.
func (e *AlertEvent) Subject(prefix string) string {
	if prefix == "" {
		prefix = DefaultSubject
	}
	level := e.Level
	if level == "" {
		level = "unknown"
	}
	return strings.TrimSuffix(prefix, ".") + "." + level
}

// SerializeEvent encodes e as JSON.
func SerializeEvent(e *AlertEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return json.Marshal(e)
}

// DeserializeEvent decodes and validates a JSON alert event.
func DeserializeEvent(data []byte) (*AlertEvent, error) {
	var e AlertEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return &e, nil
}
