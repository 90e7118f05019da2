// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

//go:build nats

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
)

var errPublisherClosed = errors.New("publisher is closed")

// Publisher wraps a Watermill NATS publisher with a circuit breaker.
type Publisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	trackMsgID     bool
	mu             sync.RWMutex
	closed         bool
	logger         watermill.LoggerAdapter
}

// NewPublisher connects to NATS. The client keeps reconnecting in the
// background, so an unreachable server at startup is not an error.
func NewPublisher(cfg PublisherConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("guardian"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
		natsgo.ErrorHandler(func(nc *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			logger.Error("NATS error", err, fields)
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: false,
			TrackMsgId:    cfg.JetStream && cfg.TrackMsgID,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		publisher:  pub,
		trackMsgID: cfg.JetStream && cfg.TrackMsgID,
		logger:     logger,
	}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

// PublishAlert serializes e and publishes it on subject.
func (p *Publisher) PublishAlert(ctx context.Context, subject string, e AlertEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := SerializeEvent(&e)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(e.EventID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", e.Type)
	msg.Metadata.Set("level", e.Level)
	msg.Metadata.Set("sensor", e.Sensor)
	if p.trackMsgID {
		msg.Metadata.Set(natsgo.MsgIdHdr, e.EventID)
	}

	if p.circuitBreaker == nil {
		return p.publisher.Publish(subject, msg)
	}
	_, err = p.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(subject, msg)
	})
	return err
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.publisher.Close()
}
