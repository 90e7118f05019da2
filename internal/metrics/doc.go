// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

/*
Package metrics provides the pipeline counters and their Prometheus export.

Two views of the same numbers are kept:

  - Counters: per-pipeline atomic counters with a point-in-time Snapshot,
    served as JSON on /api/v1/stats and used by tests to assert behavior.
  - Prometheus collectors registered with promauto and scraped on /metrics.

Every Counters method updates both, so callers never touch the collectors
for the counted events directly.

# Usage

	counters := metrics.NewCounters()
	counters.PacketSeen()
	counters.PacketDropped()
	snap := counters.Snapshot()
	fmt.Println(snap.PacketsDropped)
*/
package metrics
