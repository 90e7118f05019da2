// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package websocket

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/guardian/internal/alertbus"
)

// Message types for WebSocket communication
const (
	MessageTypeAlert = "alert"
	MessageTypeLag   = "lag"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message is the envelope for every frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// LagData is the payload of a lag frame.
type LagData struct {
	Missed uint64 `json:"missed"`
}

// MessageFor converts a bus delivery into the frame sent to the peer.
func MessageFor(d alertbus.Delivery) Message {
	if d.IsLagNotice() {
		return Message{Type: MessageTypeLag, Data: LagData{Missed: d.Missed}}
	}
	return Message{Type: MessageTypeAlert, Data: d.Alert}
}

// MarshalMessage encodes msg as a JSON text frame payload.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
