// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package alertbus

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Level is the coarse severity shown to operators.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// LevelFor maps a confidence in [0, 1] to a Level.
func LevelFor(severity float64) Level {
	switch {
	case severity >= 0.95:
		return LevelCritical
	case severity >= 0.85:
		return LevelHigh
	case severity >= 0.7:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Status tracks what happened to the threat after detection.
type Status string

const (
	StatusDetected    Status = "detected"
	StatusQuarantined Status = "quarantined"
	StatusResolved    Status = "resolved"
)

// Alert is an immutable, human-readable notification of a confirmed threat.
// Sequence is assigned by the bus at publication and is strictly increasing.
type Alert struct {
	ID         uuid.UUID `json:"id"`
	Sequence   uint64    `json:"sequence"`
	Message    string    `json:"message"`
	Severity   float64   `json:"severity"`
	Level      Level     `json:"level"`
	Source     string    `json:"source,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Status     Status    `json:"status"`
	DetectedAt time.Time `json:"detected_at"`
}

// NewAlert builds an alert for a threat verdict. An invalid source is omitted.
func NewAlert(message string, severity float64, source netip.Addr, summary string) Alert {
	a := Alert{
		ID:         uuid.New(),
		Message:    message,
		Severity:   severity,
		Level:      LevelFor(severity),
		Summary:    summary,
		Status:     StatusDetected,
		DetectedAt: time.Now().UTC(),
	}
	if source.IsValid() {
		a.Source = source.String()
	}
	return a
}

// SourceAddr parses Source; the zero Addr means unknown.
func (a Alert) SourceAddr() netip.Addr {
	addr, err := netip.ParseAddr(a.Source)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}

// String renders the alert as a single line.
func (a Alert) String() string {
	src := a.Source
	if src == "" {
		src = "unknown"
	}
	return fmt.Sprintf("%s [%s %.2f] source=%s", a.Message, a.Level, a.Severity, src)
}
