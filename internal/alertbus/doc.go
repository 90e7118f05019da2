// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

/*
Package alertbus delivers threat alerts from the analysis worker to every live
subscriber.

# Delivery Semantics

  - Publish never blocks and costs one queue insert per subscriber.
  - Every subscriber sees alerts in publication order (Alert.Sequence).
  - A new subscriber sees only alerts published after Subscribe.
  - Delivery is at-most-once; overload is resolved by the lag policy.

# Lag Policy

Each subscription has a bounded queue (Config.BufferSize). When it is full:

  - LagDropOldest (default): the oldest queued alert is discarded and the next
    read returns a Delivery with Missed set before the newer alerts.
  - LagDisconnect: the subscription is removed and its reads return ErrLagged.

# Usage

	bus := alertbus.New(alertbus.Config{BufferSize: 100}, counters)
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for {
	    d, err := sub.Next(ctx)
	    if err != nil {
	        return err // ErrClosed, ErrLagged, ErrUnsubscribed or ctx.Err()
	    }
	    if d.IsLagNotice() {
	        log.Printf("missed %d alerts", d.Missed)
	        continue
	    }
	    fmt.Println(d.Alert)
	}
*/
package alertbus
