// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package alertbus

import (
	"context"
	"sync"
)

// State is the liveness of a Subscription.
type State int

const (
	// StateActive receives new alerts.
	StateActive State = iota
	// StateClosing receives nothing new but still holds queued alerts.
	StateClosing
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// Delivery is one item read from a Subscription: either an alert or, when
// Missed is non-zero, a notice that Missed older alerts were discarded.
type Delivery struct {
	Alert  Alert
	Missed uint64
}

// IsLagNotice reports whether d reports a gap rather than carrying an alert.
func (d Delivery) IsLagNotice() bool {
	return d.Missed > 0
}

// Subscription is one subscriber's bounded view of the alert stream.
type Subscription struct {
	id uint64

	mu     sync.Mutex
	buf    []Alert
	head   int
	count  int
	missed uint64
	state  State
	err    error

	notify chan struct{}
}

func newSubscription(id uint64, capacity int) *Subscription {
	return &Subscription{
		id:     id,
		buf:    make([]Alert, capacity),
		notify: make(chan struct{}, 1),
	}
}

// ID uniquely identifies the subscription for the life of the bus.
func (s *Subscription) ID() uint64 {
	return s.id
}

// State returns the current liveness.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of queued alerts.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Next blocks until an alert, a lag notice or closure is available.
//
// After the bus closes, queued alerts are still returned, then ErrClosed.
// After Unsubscribe or a lag disconnect the queue is discarded and the
// corresponding error is returned at once.
func (s *Subscription) Next(ctx context.Context) (Delivery, error) {
	for {
		s.mu.Lock()
		if s.missed > 0 {
			d := Delivery{Missed: s.missed}
			s.missed = 0
			s.mu.Unlock()
			return d, nil
		}
		if s.count > 0 {
			a := s.pop()
			s.mu.Unlock()
			return Delivery{Alert: a}, nil
		}
		if s.state != StateActive {
			s.state = StateClosed
			err := s.err
			s.mu.Unlock()
			return Delivery{}, err
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Delivery{}, ctx.Err()
		}
	}
}

// offer enqueues a without blocking. It returns the number of alerts dropped
// to make room and whether the subscription must be disconnected instead.
func (s *Subscription) offer(a Alert, policy LagPolicy) (dropped uint64, lagged bool) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return 0, false
	}
	if s.count == len(s.buf) {
		if policy == LagDisconnect {
			s.closeLocked(ErrLagged, true)
			s.mu.Unlock()
			s.wake()
			return 0, true
		}
		s.pop()
		s.missed++
		dropped = 1
	}
	s.buf[(s.head+s.count)%len(s.buf)] = a
	s.count++
	s.mu.Unlock()
	s.wake()
	return dropped, false
}

// close ends the subscription. With discard the queue is dropped; otherwise
// queued alerts remain readable until drained.
func (s *Subscription) close(err error, discard bool) {
	s.mu.Lock()
	s.closeLocked(err, discard)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) closeLocked(err error, discard bool) {
	if s.state != StateActive {
		return
	}
	s.err = err
	if discard {
		for s.count > 0 {
			s.pop()
		}
		s.missed = 0
	}
	if s.count > 0 || s.missed > 0 {
		s.state = StateClosing
	} else {
		s.state = StateClosed
	}
}

// pop must be called with mu held and count > 0.
func (s *Subscription) pop() Alert {
	a := s.buf[s.head]
	s.buf[s.head] = Alert{}
	s.head = (s.head + 1) % len(s.buf)
	s.count--
	return a
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
