// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package alertbus

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
)

// LagPolicy decides what happens when a subscriber's queue is full.
type LagPolicy int

const (
	// LagDropOldest discards the subscriber's oldest queued alert and reports
	// the gap on its next read.
	LagDropOldest LagPolicy = iota

	// LagDisconnect closes the subscription with ErrLagged.
	LagDisconnect
)

func (p LagPolicy) String() string {
	if p == LagDisconnect {
		return "disconnect"
	}
	return "drop_oldest"
}

// ParseLagPolicy accepts "drop_oldest" and "disconnect".
func ParseLagPolicy(s string) (LagPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_oldest":
		return LagDropOldest, nil
	case "disconnect":
		return LagDisconnect, nil
	default:
		return 0, fmt.Errorf("unknown lag policy %q", s)
	}
}

// DefaultBufferSize is the per-subscriber queue capacity.
const DefaultBufferSize = 100

// Config configures a Bus.
type Config struct {
	BufferSize int
	LagPolicy  LagPolicy
}

// Bus fans alerts out to any number of subscribers. Publish never blocks:
// every subscriber has its own bounded queue and the lag policy handles
// subscribers that fall behind. Each subscriber observes alerts in
// publication order.
type Bus struct {
	cfg      Config
	counters *metrics.Counters
	logger   zerolog.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	seq    uint64
	closed bool
}

// New creates an open bus.
func New(cfg Config, counters *metrics.Counters) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if counters == nil {
		counters = metrics.NewCounters()
	}
	return &Bus{
		cfg:      cfg,
		counters: counters,
		logger:   logging.WithComponent("alertbus"),
		subs:     make(map[uint64]*Subscription),
	}
}

// Subscribe registers a new subscriber. The subscription starts empty and
// sees only alerts published after it was created. Subscribing to a closed
// bus yields a subscription that reports ErrClosed immediately.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := newSubscription(b.nextID, b.cfg.BufferSize)
	if b.closed {
		sub.close(ErrClosed, true)
		return sub
	}
	b.subs[sub.id] = sub
	b.counters.SubscriberConnected()
	b.logger.Debug().Uint64("subscriber", sub.id).Int("subscribers", len(b.subs)).Msg("Subscriber registered")
	return sub
}

// Unsubscribe removes sub and discards its queue. Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[sub.id]
	if ok {
		delete(b.subs, sub.id)
		b.counters.SubscriberDisconnected()
	}
	remaining := len(b.subs)
	b.mu.Unlock()

	sub.close(ErrUnsubscribed, true)
	if ok {
		b.logger.Debug().Uint64("subscriber", sub.id).Int("subscribers", remaining).Msg("Subscriber removed")
	}
}

// Publish assigns the next sequence number to a and offers it to every
// subscriber. It returns the alert as published and ErrClosed if the bus has
// shut down.
func (b *Bus) Publish(a Alert) (Alert, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return a, ErrClosed
	}

	b.seq++
	a.Sequence = b.seq
	b.counters.AlertPublished()

	for id, sub := range b.subs {
		dropped, lagged := sub.offer(a, b.cfg.LagPolicy)
		if dropped > 0 {
			b.counters.AlertsMissed(dropped)
		}
		if lagged {
			delete(b.subs, id)
			b.counters.SubscriberDisconnected()
			b.counters.LagDisconnect()
			b.logger.Warn().Uint64("subscriber", id).Int("buffer_size", b.cfg.BufferSize).Msg("Disconnected lagging subscriber")
		}
	}
	return a, nil
}

// Close stops accepting alerts. Subscribers may still read what was queued
// before seeing ErrClosed. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.close(ErrClosed, false)
		delete(b.subs, id)
		b.counters.SubscriberDisconnected()
	}
	b.logger.Info().Uint64("published", b.seq).Msg("Alert bus closed")
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Published returns how many alerts have been published.
func (b *Bus) Published() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Policy returns the configured lag policy.
func (b *Bus) Policy() LagPolicy {
	return b.cfg.LagPolicy
}
