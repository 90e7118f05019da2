// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package alertbus

import (
	"context"
	"errors"
	"time"
)

// DefaultDrainTimeout bounds how long Consume keeps reading after its context
// ends while waiting for the bus to close.
const DefaultDrainTimeout = 10 * time.Second

// Consume passes every delivery on sub to handle until the subscription ends.
//
// When ctx ends first, Consume keeps reading until the bus closes or
// drainTimeout passes, so alerts the pipeline publishes while it drains on
// shutdown still reach the consumer. handle receives a context that stays
// valid for the drain. A non-positive drainTimeout uses DefaultDrainTimeout.
//
// Consume returns ErrClosed once the bus closed and the queue is empty,
// ctx.Err() when the drain timed out, or the error that ended the
// subscription (ErrLagged, ErrUnsubscribed).
func Consume(ctx context.Context, sub *Subscription, drainTimeout time.Duration, handle func(context.Context, Delivery)) error {
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}

	readCtx := ctx
	draining := false
	for {
		d, err := sub.Next(readCtx)
		if err == nil {
			handle(readCtx, d)
			continue
		}

		switch {
		case !draining && ctx.Err() != nil && errors.Is(err, ctx.Err()):
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
			defer cancel()
			readCtx = drainCtx
			draining = true
		case draining && errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()
		default:
			return err
		}
	}
}
