// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package capture_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/guardian/internal/capture"
	"github.com/tomtom215/guardian/internal/capture/capturetest"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func transient() capturetest.Step {
	return capturetest.Step{Err: &capture.CaptureError{Kind: capture.KindRead, Interface: "eth0", Err: errors.New("buffer overrun")}}
}

func packet(sport uint16) capturetest.Step {
	frame := capturetest.TCPFrame("203.0.113.7", "10.0.0.5", sport, 22, capturetest.TCPFlags{SYN: true}, nil)
	return capturetest.Step{Record: capturetest.Record(frame)}
}

func TestLoop_DeliversRecordsInOrder(t *testing.T) {
	src := capturetest.NewScriptedSource(false, packet(1000), packet(1001), packet(1002))
	counters := metrics.NewCounters()

	var got []capture.PacketRecord
	loop := capture.NewLoop(src, func(r capture.PacketRecord) { got = append(got, r) }, counters, 5)

	if err := loop.Run(context.Background()); !errors.Is(err, capture.ErrSourceClosed) {
		t.Fatalf("Run() error = %v, want ErrSourceClosed", err)
	}
	if len(got) != 3 {
		t.Fatalf("delivered %d records, want 3", len(got))
	}
	if seen := counters.Snapshot().PacketsSeen; seen != 3 {
		t.Errorf("PacketsSeen = %d, want 3", seen)
	}
	if !src.IsClosed() {
		t.Error("loop must close its source")
	}

	for i, r := range got {
		if r.Src != capturetest.Addr("203.0.113.7") || r.Dst != capturetest.Addr("10.0.0.5") {
			t.Errorf("record %d = %s -> %s", i, r.Src, r.Dst)
		}
	}
}

func TestLoop_TransientErrorSkipsOnePacket(t *testing.T) {
	src := capturetest.NewScriptedSource(false, packet(1), transient(), packet(2), transient(), transient(), packet(3))
	counters := metrics.NewCounters()

	n := 0
	loop := capture.NewLoop(src, func(capture.PacketRecord) { n++ }, counters, 3)

	if err := loop.Run(context.Background()); !errors.Is(err, capture.ErrSourceClosed) {
		t.Fatalf("Run() error = %v, want ErrSourceClosed", err)
	}
	if n != 3 {
		t.Errorf("delivered %d records, want 3", n)
	}

	snap := counters.Snapshot()
	if snap.PacketsSeen != 3 || snap.PacketsSkipped != 3 {
		t.Errorf("seen/skipped = %d/%d, want 3/3", snap.PacketsSeen, snap.PacketsSkipped)
	}
}

func TestLoop_ConsecutiveErrorsEscalate(t *testing.T) {
	src := capturetest.NewScriptedSource(true, packet(1), transient(), transient(), transient(), packet(2))

	loop := capture.NewLoop(src, func(capture.PacketRecord) {}, nil, 3)
	err := loop.Run(context.Background())

	var ce *capture.CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("Run() error = %v, want *CaptureError", err)
	}
	if !ce.Fatal || ce.Kind != capture.KindTooManyErrors || ce.Interface != "eth0" {
		t.Errorf("CaptureError = %+v, want fatal too-many-errors on eth0", ce)
	}
	if !src.IsClosed() {
		t.Error("source left open")
	}
}

func TestLoop_FatalErrorStopsImmediately(t *testing.T) {
	fatal := &capture.CaptureError{Kind: capture.KindDeviceNotFound, Interface: "eth9", Fatal: true}
	src := capturetest.NewScriptedSource(true, packet(1), capturetest.Step{Err: fatal}, packet(2))

	n := 0
	loop := capture.NewLoop(src, func(capture.PacketRecord) { n++ }, nil, 10)

	if err := loop.Run(context.Background()); !errors.Is(err, fatal) {
		t.Fatalf("Run() error = %v, want the device error", err)
	}
	if n != 1 {
		t.Errorf("delivered %d records, want 1", n)
	}
}

func TestLoop_CancelClosesBlockedSource(t *testing.T) {
	src := capturetest.NewScriptedSource(true, packet(1))
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- capture.NewLoop(src, func(capture.PacketRecord) {}, nil, 10).Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
	if !src.IsClosed() {
		t.Error("source left open")
	}
}

func TestCaptureError(t *testing.T) {
	inner := errors.New("socket: Operation not permitted")
	err := capture.ClassifyOpenError("eth0", inner)

	if err.Kind != capture.KindPermissionDenied || !err.Fatal || !capture.IsFatal(err) {
		t.Errorf("ClassifyOpenError() = %+v, want fatal permission denied", err)
	}
	if !errors.Is(err, inner) {
		t.Error("CaptureError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "permission denied on eth0") {
		t.Errorf("Error() = %q", err.Error())
	}

	tests := []struct {
		msg  string
		want capture.Kind
	}{
		{"eth9: No such device exists", capture.KindDeviceNotFound},
		{"something odd", capture.KindOpen},
	}
	for _, tt := range tests {
		if got := capture.ClassifyOpenError("eth9", errors.New(tt.msg)).Kind; got != tt.want {
			t.Errorf("ClassifyOpenError(%q).Kind = %v, want %v", tt.msg, got, tt.want)
		}
	}

	if capture.IsFatal(&capture.CaptureError{Kind: capture.KindRead}) {
		t.Error("read error reported fatal")
	}
	if capture.IsFatal(errors.New("plain")) {
		t.Error("plain error reported fatal")
	}
}

func TestParseAddrs(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		src     string
		dst     string
		invalid bool
	}{
		{"ipv4 tcp", capturetest.TCPFrame("192.0.2.1", "192.0.2.2", 1, 2, capturetest.TCPFlags{}, nil), "192.0.2.1", "192.0.2.2", false},
		{"ipv4 udp", capturetest.UDPFrame("198.51.100.9", "10.1.1.1", 53, 5353, []byte("x")), "198.51.100.9", "10.1.1.1", false},
		{"ipv6 tcp", capturetest.TCP6Frame("2001:db8::1", "2001:db8::2", 1, 2, capturetest.TCPFlags{SYN: true}), "2001:db8::1", "2001:db8::2", false},
		{"garbage", []byte{0x01, 0x02, 0x03}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := capturetest.Record(tt.frame)
			if tt.invalid {
				if rec.Src.IsValid() || rec.Dst.IsValid() {
					t.Errorf("addresses = %s -> %s, want invalid", rec.Src, rec.Dst)
				}
				return
			}
			if rec.Src != capturetest.Addr(tt.src) || rec.Dst != capturetest.Addr(tt.dst) {
				t.Errorf("addresses = %s -> %s, want %s -> %s", rec.Src, rec.Dst, tt.src, tt.dst)
			}
			if rec.Truncated() {
				t.Error("Truncated() = true")
			}
		})
	}
}
