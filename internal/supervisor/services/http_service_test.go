// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package services

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// eventLog records lifecycle calls in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.events, ",")
}

// fakeServer blocks in ListenAndServe until Shutdown, unless listenErr is set.
type fakeServer struct {
	log           *eventLog
	listenErr     error
	shutdownDelay time.Duration
	stop          chan struct{}
	once          sync.Once
}

func newFakeServer(log *eventLog) *fakeServer {
	return &fakeServer{log: log, stop: make(chan struct{})}
}

func (s *fakeServer) ListenAndServe() error {
	s.log.add("listen")
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(context.Context) error {
	time.Sleep(s.shutdownDelay)
	s.log.add("shutdown")
	s.once.Do(func() { close(s.stop) })
	return nil
}

func serveAndCancel(t *testing.T, svc *HTTPServerService) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
		return nil
	}
}

func TestHTTPServerService_DrainRunsAfterShutdown(t *testing.T) {
	log := &eventLog{}
	var drainDeadline time.Time
	svc := NewHTTPServerService(newFakeServer(log), time.Second).WithDrain(func(ctx context.Context) error {
		drainDeadline, _ = ctx.Deadline()
		log.add("drain")
		return nil
	})

	start := time.Now()
	if err := serveAndCancel(t, svc); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	if got := log.String(); got != "listen,shutdown,drain" {
		t.Errorf("lifecycle = %s, want listen,shutdown,drain", got)
	}
	if drainDeadline.IsZero() || drainDeadline.After(start.Add(2*time.Second)) {
		t.Errorf("drain deadline = %v, want bounded by the 1s shutdown timeout", drainDeadline)
	}
}

func TestHTTPServerService_DrainSharesShutdownBudget(t *testing.T) {
	log := &eventLog{}
	server := newFakeServer(log)
	server.shutdownDelay = 40 * time.Millisecond
	svc := NewHTTPServerService(server, 60*time.Millisecond).WithDrain(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := serveAndCancel(t, svc)
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v, want the drain's DeadlineExceeded", err)
	}
	if err != nil && !strings.Contains(err.Error(), "websocket sessions did not drain") {
		t.Errorf("Serve() error = %q, want the drain failure named", err)
	}
	// 20ms before cancel plus one 60ms budget shared by Shutdown and the drain.
	if elapsed > 500*time.Millisecond {
		t.Errorf("shutdown took %v, want Shutdown and drain to share one timeout", elapsed)
	}
}

func TestHTTPServerService_ListenerFailureSkipsDrain(t *testing.T) {
	log := &eventLog{}
	server := newFakeServer(log)
	server.listenErr = errors.New("listen tcp 127.0.0.1:8080: bind: address already in use")
	drained := false
	svc := NewHTTPServerService(server, time.Second).WithDrain(func(context.Context) error {
		drained = true
		return nil
	})

	err := svc.Serve(context.Background())
	if !errors.Is(err, server.listenErr) || !strings.Contains(err.Error(), "http server failed") {
		t.Errorf("Serve() error = %v, want the wrapped listener error", err)
	}
	if drained {
		t.Error("drain ran although the listener never served")
	}
	if got := log.String(); got != "listen" {
		t.Errorf("lifecycle = %s, want listen only", got)
	}
}

func TestHTTPServerService_Defaults(t *testing.T) {
	svc := NewHTTPServerService(newFakeServer(&eventLog{}), 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s", svc.shutdownTimeout)
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
	if err := serveAndCancel(t, svc); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() without a drain = %v, want context.Canceled", err)
	}
}

// listenerServer serves on a listener opened by the test so the address is
// known before Serve starts.
type listenerServer struct {
	*http.Server
	ln net.Listener
}

func (s listenerServer) ListenAndServe() error { return s.Serve(s.ln) }

// WebSocket sessions outlive http.Server.Shutdown; the service waits for them
// until the pipeline closes the alert bus.
func TestHTTPServerService_WaitsForWebSocketSessionsUntilBusCloses(t *testing.T) {
	bus := alertbus.New(alertbus.Config{}, nil)
	ws := websocket.NewHandler(bus, websocket.Config{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	svc := NewHTTPServerService(listenerServer{Server: &http.Server{Handler: mux}, ln: ln}, 5*time.Second).WithDrain(ws.Wait)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	conn, _, err := gws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if bus.SubscriberCount() != 1 {
		t.Fatal("session did not subscribe")
	}

	cancel()
	select {
	case err := <-errCh:
		t.Fatalf("Serve() returned %v while a session was still open", err)
	case <-time.After(100 * time.Millisecond):
	}

	// An alert published during shutdown still reaches the open session.
	if _, err := bus.Publish(alertbus.NewAlert("THREAT_DETECTED: late", 0.97, netip.MustParseAddr("203.0.113.7"), "")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	bus.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, data, err := conn.ReadMessage(); err != nil || !strings.Contains(string(data), "THREAT_DETECTED: late") {
		t.Errorf("ReadMessage() = %s, %v, want the late alert", data, err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after the bus closed")
	}
}
