// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package pipeline_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/capture/capturetest"
	"github.com/tomtom215/guardian/internal/pipeline"
	"github.com/tomtom215/guardian/internal/websocket"
)

type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readWSAlert(t *testing.T, conn *gws.Conn) alertbus.Alert {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var f wsFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("invalid frame %s: %v", data, err)
	}
	if f.Type != websocket.MessageTypeAlert {
		t.Fatalf("frame type = %q, want %q", f.Type, websocket.MessageTypeAlert)
	}
	var a alertbus.Alert
	if err := json.Unmarshal(f.Data, &a); err != nil {
		t.Fatalf("invalid alert %s: %v", f.Data, err)
	}
	return a
}

// One subscriber disconnecting mid-stream does not disturb the
// others.
func TestPipeline_SubscriberDisconnectMidStream(t *testing.T) {
	bus := alertbus.New(alertbus.Config{}, nil)
	handler := websocket.NewHandler(bus, websocket.Config{})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src := capturetest.NewScriptedSource(true)
	p := pipeline.New(testConfig(), bus, nil, openSource(src), loadAnalyzer)
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	dial := func() *gws.Conn {
		conn, _, err := gws.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		return conn
	}
	first, second := dial(), dial()
	defer second.Close()
	waitFor(t, func() bool { return bus.SubscriberCount() == 2 }, "subscribers did not register")

	src.Push(threatPacket("203.0.113.7"))
	for _, conn := range []*gws.Conn{first, second} {
		if a := readWSAlert(t, conn); a.Sequence != 1 || a.Source != "203.0.113.7" {
			t.Errorf("alert = %+v", a)
		}
	}

	_ = first.Close()
	waitFor(t, func() bool { return bus.SubscriberCount() == 1 }, "closed subscriber was not removed")

	src.Push(threatPacket("203.0.113.9"))
	if a := readWSAlert(t, second); a.Sequence != 2 || a.Source != "203.0.113.9" {
		t.Errorf("alert = %+v", a)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}

	// Closing the bus ends the remaining session with "going away".
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()
	if !gws.IsCloseError(err, gws.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want close 1001", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := handler.Wait(waitCtx); err != nil {
		t.Errorf("sessions still running: %v", err)
	}
}
