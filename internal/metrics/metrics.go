// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture Metrics
	PacketsCaptured = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_packets_captured_total",
			Help: "Total number of packets read from the capture device",
		},
	)

	PacketsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_packets_skipped_total",
			Help: "Packets skipped because of transient capture read errors",
		},
	)

	PacketsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_packets_dropped_total",
			Help: "Packets dropped because the analysis queue was full",
		},
	)

	AnalysisQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_analysis_queue_depth",
			Help: "Summaries waiting for the analysis worker",
		},
	)

	// Analysis Metrics
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guardian_analysis_duration_seconds",
			Help:    "Latency of a single analysis (tokenize, forward pass, decode)",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
	)

	InferenceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_inference_errors_total",
			Help: "Summaries that could not be scored",
		},
	)

	ThreatsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_threats_detected_total",
			Help: "Threat verdicts by severity level",
		},
		[]string{"level"},
	)

	// Alert Bus Metrics
	AlertsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_alerts_published_total",
			Help: "Alerts published to the alert bus",
		},
	)

	AlertsMissed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_alerts_missed_total",
			Help: "Alerts discarded from lagging subscriber queues",
		},
	)

	SubscribersLagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_subscribers_lagged_total",
			Help: "Subscribers disconnected for falling behind",
		},
	)

	SubscribersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_subscribers_connected",
			Help: "Current number of alert subscribers",
		},
	)

	// Mitigation Metrics
	MitigationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_mitigations_total",
			Help: "Mitigation attempts by backend and outcome (applied, failed, skipped)",
		},
		[]string{"backend", "outcome"},
	)

	MitigationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_mitigation_duration_seconds",
			Help:    "Time to complete a mitigation including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "guardian_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Forwarding Metrics
	AlertsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_alerts_forwarded_total",
			Help: "Alerts forwarded to downstream sinks by sink and result",
		},
		[]string{"sink", "result"},
	)

	// Journal Metrics
	JournalWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_journal_writes_total",
			Help: "Journal writes by record kind and result",
		},
		[]string{"kind", "result"},
	)

	JournalCompactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_journal_compactions_total",
			Help: "Value log garbage collection runs on the journal",
		},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardian_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardian_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_api_rate_limit_hits_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
		[]string{"route"},
	)
)

// RecordAnalysis records the latency of one analysis.
func RecordAnalysis(duration time.Duration) {
	AnalysisDuration.Observe(duration.Seconds())
}

// RecordMitigation records a finished mitigation.
func RecordMitigation(backend, outcome string, duration time.Duration) {
	MitigationOutcomes.WithLabelValues(backend, outcome).Inc()
	MitigationDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordCircuitBreakerTransition records a breaker state change.
// States follow gobreaker: 0=closed, 1=half-open, 2=open.
func RecordCircuitBreakerTransition(name string, from, to string, toState int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(toState))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordForward records one alert handed to a downstream sink.
func RecordForward(sink string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	AlertsForwarded.WithLabelValues(sink, result).Inc()
}

// RecordJournalWrite records one journal write of the given kind.
func RecordJournalWrite(kind string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	JournalWrites.WithLabelValues(kind, result).Inc()
}

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
