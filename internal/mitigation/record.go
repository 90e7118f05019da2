// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package mitigation

import (
	"net/netip"
	"time"
)

// Action is the countermeasure applied to a target.
type Action string

// ActionQuarantine blocks all further traffic from an address.
const ActionQuarantine Action = "quarantine"

// Outcome is the result of one Mitigate call.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Record describes one finished mitigation. Reason is set for failed and
// skipped outcomes, and for applied outcomes that needed no firewall change.
type Record struct {
	Target   netip.Addr    `json:"target"`
	Action   Action        `json:"action"`
	Outcome  Outcome       `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	Attempts int           `json:"attempts"`
	Backend  string        `json:"backend"`
	Severity float64       `json:"severity,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Skip reasons.
const (
	ReasonInvalidAddress     = "invalid address"
	ReasonUnspecified        = "unspecified address"
	ReasonLoopback           = "loopback address"
	ReasonAllowlisted        = "allowlisted"
	ReasonAlreadyQuarantined = "already quarantined"
	ReasonShutdown           = "abandoned at shutdown"
)
