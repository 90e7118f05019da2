// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package alertbus

import "errors"

var (
	// ErrClosed is returned once the bus has shut down and every queued alert
	// has been delivered.
	ErrClosed = errors.New("alert bus closed")

	// ErrLagged is returned to a subscriber removed under the disconnect lag policy.
	ErrLagged = errors.New("subscriber lagged behind and was disconnected")

	// ErrUnsubscribed is returned after Unsubscribe.
	ErrUnsubscribed = errors.New("subscription cancelled")
)
