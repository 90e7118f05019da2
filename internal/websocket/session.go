// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/guardian/internal/alertbus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// EndReason identifies why a session stopped.
type EndReason string

const (
	EndBusClosed    EndReason = "bus_closed"
	EndLagged       EndReason = "lagged"
	EndUnsubscribed EndReason = "unsubscribed"
	EndPeerClosed   EndReason = "peer_closed"
	EndWriteFailed  EndReason = "write_failed"
)

// endReasonFor maps the error that stopped the write pump to an EndReason.
func endReasonFor(err error) EndReason {
	switch {
	case errors.Is(err, alertbus.ErrClosed):
		return EndBusClosed
	case errors.Is(err, alertbus.ErrLagged):
		return EndLagged
	case errors.Is(err, alertbus.ErrUnsubscribed):
		return EndUnsubscribed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return EndPeerClosed
	default:
		return EndWriteFailed
	}
}

// session binds one connection to one subscription.
type session struct {
	id     uint64
	conn   *websocket.Conn
	bus    *alertbus.Bus
	sub    *alertbus.Subscription
	logger zerolog.Logger

	// writeMu serializes data frames from the write and read pumps.
	// Control frames go through WriteControl, which is safe concurrently.
	writeMu sync.Mutex
	sent    int
}

func newSession(id uint64, conn *websocket.Conn, bus *alertbus.Bus, sub *alertbus.Subscription, logger zerolog.Logger) *session {
	return &session{
		id:     id,
		conn:   conn,
		bus:    bus,
		sub:    sub,
		logger: logger,
	}
}

// run blocks until the session ends. The subscription is always removed and
// the connection always closed before it returns.
func (s *session) run(ctx context.Context) EndReason {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		s.readPump()
	}()
	go func() {
		defer wg.Done()
		s.pingLoop(ctx)
	}()

	err := s.writePump(ctx)
	reason := endReasonFor(err)

	cancel()
	s.bus.Unsubscribe(s.sub)
	s.sendClose(reason)
	_ = s.conn.Close() // unblocks the read pump
	wg.Wait()

	event := s.logger.Info()
	if reason == EndWriteFailed {
		event = s.logger.Warn().Err(err)
	}
	event.Str("reason", string(reason)).Int("alerts_sent", s.sent).Msg("Subscriber session ended")
	return reason
}

// writePump forwards deliveries until the subscription or the peer goes away.
func (s *session) writePump(ctx context.Context) error {
	for {
		d, err := s.sub.Next(ctx)
		if err != nil {
			return err
		}
		if err := s.write(MessageFor(d)); err != nil {
			return err
		}
		if !d.IsLagNotice() {
			s.sent++
		}
	}
}

// readPump consumes inbound frames until the connection fails.
func (s *session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug().Err(err).Msg("Unexpected websocket close")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			if err := s.write(Message{Type: MessageTypePong}); err != nil {
				return
			}
		}
	}
}

func (s *session) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *session) write(msg Message) error {
	payload, err := MarshalMessage(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// sendClose tells the peer why the server is ending the session. Nothing is
// sent when the peer is already gone.
func (s *session) sendClose(reason EndReason) {
	var code int
	var text string
	switch reason {
	case EndBusClosed:
		code, text = websocket.CloseGoingAway, "alert stream closed"
	case EndLagged:
		code, text = websocket.CloseTryAgainLater, "subscriber lagged"
	case EndUnsubscribed:
		code, text = websocket.CloseNormalClosure, ""
	default:
		return
	}
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
