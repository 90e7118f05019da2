// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

/*
Package websocket streams alerts to subscribers over WebSocket connections.

Each accepted connection becomes a session bound to exactly one alert bus
subscription. A session owns three goroutines:

  - write pump: reads the subscription and writes one JSON text frame per alert
  - read pump: detects transport closure and answers application pings
  - ping loop: sends protocol pings with WriteControl to keep idle links alive

Frames:

	{"type":"alert","data":{"id":"...","sequence":42,"message":"THREAT_DETECTED: ...", ...}}
	{"type":"lag","data":{"missed":7}}
	{"type":"pong","data":null}

A lag frame replaces alerts that were discarded because the subscriber fell
behind. Clients may send {"type":"ping"} and receive a pong frame.

Session end:

A session ends when a write fails, the peer closes the transport, the bus
closes or the subscription is disconnected for lagging. The handler always
unsubscribes and closes the connection on exit. Bus closure is reported to
the peer with close code 1001 (going away); a lag disconnect uses 1013 (try
again later).

Usage:

	h := websocket.NewHandler(bus, websocket.Config{
	    AllowedOrigins: []string{"https://soc.example.com"},
	})
	router.Get("/ws", h.ServeHTTP)

Timing:

  - writeWait: 10 seconds per frame
  - pongWait: 60 seconds without a pong closes the session
  - pingPeriod: 54 seconds
  - maxMessageSize: 4 KB for inbound frames
*/
package websocket
