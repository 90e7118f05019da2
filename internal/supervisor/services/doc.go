// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package services provides suture.Service wrappers for Guardian components
// that do not implement the Serve(ctx) error pattern directly.
//
//   - PipelineService: the detection pipeline; terminates the tree when
//     capture ends or fails
//   - HTTPServerService: the HTTP listener, with a drain step for hijacked
//     WebSocket connections
//
// The journal recorder and the NATS forwarder implement suture.Service
// themselves and are added to the tree unwrapped.
//
// Each wrapper implements fmt.Stringer so suture's event hook can name the
// service in its logs.
package services
