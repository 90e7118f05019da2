// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package capture

import "time"

// Source is a blocking, unbounded sequence of captured frames.
//
// Next blocks until a frame is available. It returns ErrSourceClosed after
// Close, a *CaptureError with Fatal=false for a transient read failure, or a
// fatal *CaptureError when the device is gone. Close may be called from any
// goroutine and unblocks a pending Next.
type Source interface {
	Next() (PacketRecord, error)
	Close() error
}

// Config configures a live capture.
type Config struct {
	Interface   string
	Promiscuous bool
	SnapLength  int
	ReadTimeout time.Duration
	BPFFilter   string
}

const (
	DefaultSnapLength  = 65535
	DefaultReadTimeout = 500 * time.Millisecond
)

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.SnapLength <= 0 {
		c.SnapLength = DefaultSnapLength
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}
