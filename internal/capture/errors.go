// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package capture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSourceClosed is returned by Source.Next once the source has been closed or
// an offline capture has been exhausted.
var ErrSourceClosed = errors.New("capture source closed")

// Kind classifies a capture failure.
type Kind int

const (
	KindRead Kind = iota
	KindDeviceNotFound
	KindPermissionDenied
	KindFilter
	KindOpen
	KindTooManyErrors
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindDeviceNotFound:
		return "device not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindFilter:
		return "invalid filter"
	case KindOpen:
		return "open"
	case KindTooManyErrors:
		return "too many consecutive errors"
	default:
		return "unknown"
	}
}

// CaptureError is a failure of the packet source. Fatal errors stop the pipeline;
// non-fatal ones cost a single packet.
type CaptureError struct {
	Kind      Kind
	Interface string
	Fatal     bool
	Err       error
}

func (e *CaptureError) Error() string {
	msg := fmt.Sprintf("capture %s", e.Kind)
	if e.Interface != "" {
		msg += " on " + e.Interface
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a CaptureError that must stop capture.
func IsFatal(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce) && ce.Fatal
}

// ClassifyOpenError maps libpcap activation messages onto capture kinds.
func ClassifyOpenError(iface string, err error) *CaptureError {
	msg := strings.ToLower(err.Error())
	kind := KindOpen
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "operation not permitted"):
		kind = KindPermissionDenied
	case strings.Contains(msg, "no such device"), strings.Contains(msg, "doesn't exist"):
		kind = KindDeviceNotFound
	}
	return &CaptureError{Kind: kind, Interface: iface, Fatal: true, Err: err}
}
