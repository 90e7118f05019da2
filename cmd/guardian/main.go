// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package main is the entry point for the guardian command.
//
// Guardian watches a network interface, scores every packet with a local
// model, streams alerts to WebSocket subscribers and can quarantine hostile
// sources at the host firewall.
//
// # Commands
//
//	guardian serve                 run the detection pipeline and HTTP surface
//	guardian quarantine <addr>     block one address with the configured backend
//	guardian analyze <text>        score a traffic description offline
//	guardian analyze --pcap f.pcap score every packet of a capture file
//	guardian version               print build information
//
// # Startup Order (serve)
//
//  1. Configuration: defaults, then guardian.yaml, then environment (Koanf v2)
//  2. Journal (optional): BadgerDB alert and mitigation history
//  3. Capture device, then the analyzer. A missing device aborts startup
//     before the model is read.
//  4. Mitigation executor (optional)
//  5. Supervisor tree: delivery layer (journal, NATS), pipeline, HTTP server
//
// # Configuration
//
// Environment variables use the GUARDIAN_<SECTION>_<KEY> form, for example
// GUARDIAN_CAPTURE_INTERFACE or GUARDIAN_MITIGATION_ENABLED. The historical
// names NETWORK_INTERFACE, MODEL_PATH and TOKENIZER_PATH are also accepted.
//
// # Build Tags
//
//	go build -tags "nats" ./cmd/guardian   # enable NATS alert forwarding
//
// # Exit Status
//
// 0 after a clean shutdown on SIGINT or SIGTERM, 1 on any startup failure or
// when packet capture fails while running.
package main

import (
	"os"

	"github.com/tomtom215/guardian/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Error().Err(err).Msg("guardian failed")
		os.Exit(1)
	}
}
