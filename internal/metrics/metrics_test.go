// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func getGaugeValue(gauge prometheus.Gauge) float64 {
	var m io_prometheus_client.Metric
	if err := gauge.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getHistogramCount(o prometheus.Observer) uint64 {
	var m io_prometheus_client.Metric
	if err := o.(prometheus.Metric).Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestCounters_Snapshot(t *testing.T) {
	c := NewCounters()

	c.PacketSeen()
	c.PacketSeen()
	c.PacketSkipped()
	c.PacketDropped()
	c.InferenceError()
	c.ThreatDetected("high")
	c.AlertPublished()
	c.AlertsMissed(3)
	c.LagDisconnect()
	c.SubscriberConnected()
	c.SubscriberConnected()
	c.SubscriberDisconnected()
	c.MitigationOutcome("applied")
	c.MitigationOutcome("failed")
	c.MitigationOutcome("skipped")
	c.MitigationOutcome("bogus")

	snap := c.Snapshot()
	checks := []struct {
		name string
		got  uint64
		want uint64
	}{
		{"PacketsSeen", snap.PacketsSeen, 2},
		{"PacketsSkipped", snap.PacketsSkipped, 1},
		{"PacketsDropped", snap.PacketsDropped, 1},
		{"InferenceErrors", snap.InferenceErrors, 1},
		{"ThreatsDetected", snap.ThreatsDetected, 1},
		{"AlertsPublished", snap.AlertsPublished, 1},
		{"AlertsMissed", snap.AlertsMissed, 3},
		{"LagDisconnects", snap.LagDisconnects, 1},
		{"MitigationsApplied", snap.MitigationsApplied, 1},
		{"MitigationsFailed", snap.MitigationsFailed, 1},
		{"MitigationsSkipped", snap.MitigationsSkipped, 1},
	}
	for _, chk := range checks {
		if chk.got != chk.want {
			t.Errorf("%s = %d, want %d", chk.name, chk.got, chk.want)
		}
	}
	if snap.SubscribersConnected != 1 {
		t.Errorf("SubscribersConnected = %d, want 1", snap.SubscribersConnected)
	}
}

func TestCounters_Concurrent(t *testing.T) {
	c := NewCounters()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.PacketSeen()
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().PacketsSeen; got != 5000 {
		t.Errorf("PacketsSeen = %d, want 5000", got)
	}
}

func TestCounters_MirrorsPrometheus(t *testing.T) {
	c := NewCounters()

	before := testutil.ToFloat64(PacketsDropped)
	c.PacketDropped()
	c.PacketDropped()

	if got := testutil.ToFloat64(PacketsDropped) - before; got != 2 {
		t.Errorf("prometheus PacketsDropped delta = %v, want 2", got)
	}
}

func TestRecordMitigation(t *testing.T) {
	before := testutil.ToFloat64(MitigationOutcomes.WithLabelValues("iptables", "applied"))
	RecordMitigation("iptables", "applied", 15*time.Millisecond)

	got := testutil.ToFloat64(MitigationOutcomes.WithLabelValues("iptables", "applied")) - before
	if got != 1 {
		t.Errorf("applied delta = %v, want 1", got)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	RecordCircuitBreakerTransition("mitigation", "closed", "open", 2)

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("mitigation")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
}

func TestRecordForward(t *testing.T) {
	okBefore := testutil.ToFloat64(AlertsForwarded.WithLabelValues("nats", "success"))
	errBefore := testutil.ToFloat64(AlertsForwarded.WithLabelValues("nats", "error"))

	RecordForward("nats", nil)
	RecordForward("nats", errors.New("publish failed"))

	if got := testutil.ToFloat64(AlertsForwarded.WithLabelValues("nats", "success")) - okBefore; got != 1 {
		t.Errorf("success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(AlertsForwarded.WithLabelValues("nats", "error")) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	obs := APIRequestDuration.WithLabelValues("GET", "/api/v1/stats")
	before := getHistogramCount(obs)

	RecordAPIRequest("GET", "/api/v1/stats", "200", 3*time.Millisecond)

	if got := getHistogramCount(obs) - before; got != 1 {
		t.Errorf("duration samples delta = %d, want 1", got)
	}
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/stats", "200")); got < 1 {
		t.Errorf("requests total = %v, want >= 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := getGaugeValue(APIActiveRequests)

	TrackActiveRequest(true)
	if got := getGaugeValue(APIActiveRequests) - before; got != 1 {
		t.Errorf("active delta after inc = %v, want 1", got)
	}
	TrackActiveRequest(false)
	if got := getGaugeValue(APIActiveRequests); got != before {
		t.Errorf("active = %v, want %v", got, before)
	}
}
