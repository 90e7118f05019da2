// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package metrics

import (
	"sync/atomic"
	"time"
)

// Counters tracks pipeline activity for one process. All methods are safe for
// concurrent use; the zero value is not usable, call NewCounters.
type Counters struct {
	startedAt time.Time

	packetsSeen     atomic.Uint64
	packetsSkipped  atomic.Uint64
	packetsDropped  atomic.Uint64
	inferenceErrors atomic.Uint64
	threats         atomic.Uint64
	alertsPublished atomic.Uint64
	alertsMissed    atomic.Uint64
	lagDisconnects  atomic.Uint64
	applied         atomic.Uint64
	failed          atomic.Uint64
	skipped         atomic.Uint64
	subscribers     atomic.Int64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Uptime               string `json:"uptime"`
	PacketsSeen          uint64 `json:"packets_seen"`
	PacketsSkipped       uint64 `json:"packets_skipped"`
	PacketsDropped       uint64 `json:"packets_dropped"`
	InferenceErrors      uint64 `json:"inference_errors"`
	ThreatsDetected      uint64 `json:"threats_detected"`
	AlertsPublished      uint64 `json:"alerts_published"`
	AlertsMissed         uint64 `json:"alerts_missed"`
	LagDisconnects       uint64 `json:"lag_disconnects"`
	MitigationsApplied   uint64 `json:"mitigations_applied"`
	MitigationsFailed    uint64 `json:"mitigations_failed"`
	MitigationsSkipped   uint64 `json:"mitigations_skipped"`
	SubscribersConnected int64  `json:"subscribers_connected"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{startedAt: time.Now()}
}

func (c *Counters) PacketSeen() {
	c.packetsSeen.Add(1)
	PacketsCaptured.Inc()
}

// PacketSkipped counts a packet lost to a transient read error.
func (c *Counters) PacketSkipped() {
	c.packetsSkipped.Add(1)
	PacketsSkipped.Inc()
}

// PacketDropped counts a packet shed because analysis could not keep up.
func (c *Counters) PacketDropped() {
	c.packetsDropped.Add(1)
	PacketsDropped.Inc()
}

func (c *Counters) InferenceError() {
	c.inferenceErrors.Add(1)
	InferenceErrors.Inc()
}

// ThreatDetected counts a threat verdict at the given severity level.
func (c *Counters) ThreatDetected(level string) {
	c.threats.Add(1)
	ThreatsDetected.WithLabelValues(level).Inc()
}

func (c *Counters) AlertPublished() {
	c.alertsPublished.Add(1)
	AlertsPublished.Inc()
}

// AlertsMissed counts alerts discarded from a lagging subscriber's queue.
func (c *Counters) AlertsMissed(n uint64) {
	c.alertsMissed.Add(n)
	AlertsMissed.Add(float64(n))
}

func (c *Counters) LagDisconnect() {
	c.lagDisconnects.Add(1)
	SubscribersLagged.Inc()
}

func (c *Counters) SubscriberConnected() {
	c.subscribers.Add(1)
	SubscribersConnected.Inc()
}

func (c *Counters) SubscriberDisconnected() {
	c.subscribers.Add(-1)
	SubscribersConnected.Dec()
}

// MitigationOutcome counts a finished mitigation by outcome name.
func (c *Counters) MitigationOutcome(outcome string) {
	switch outcome {
	case "applied":
		c.applied.Add(1)
	case "failed":
		c.failed.Add(1)
	case "skipped":
		c.skipped.Add(1)
	}
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Uptime:               time.Since(c.startedAt).Truncate(time.Second).String(),
		PacketsSeen:          c.packetsSeen.Load(),
		PacketsSkipped:       c.packetsSkipped.Load(),
		PacketsDropped:       c.packetsDropped.Load(),
		InferenceErrors:      c.inferenceErrors.Load(),
		ThreatsDetected:      c.threats.Load(),
		AlertsPublished:      c.alertsPublished.Load(),
		AlertsMissed:         c.alertsMissed.Load(),
		LagDisconnects:       c.lagDisconnects.Load(),
		MitigationsApplied:   c.applied.Load(),
		MitigationsFailed:    c.failed.Load(),
		MitigationsSkipped:   c.skipped.Load(),
		SubscribersConnected: c.subscribers.Load(),
	}
}
