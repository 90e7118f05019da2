// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package mitigation

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrCommandNotFound means the firewall binary is not installed.
	ErrCommandNotFound = errors.New("firewall command not found")

	// ErrPermissionDenied means the process lacks the privilege to change
	// firewall state.
	ErrPermissionDenied = errors.New("insufficient privilege to modify firewall")

	// ErrInvalidRule means the firewall rejected the rule or its target
	// (bad chain, missing table or set).
	ErrInvalidRule = errors.New("firewall rejected rule")

	// ErrCircuitOpen means recent failures tripped the circuit breaker and
	// the firewall was not invoked.
	ErrCircuitOpen = errors.New("mitigation circuit breaker open")

	// ErrUnsupported means the backend is not available on this platform.
	ErrUnsupported = errors.New("firewall backend not supported on this platform")
)

// CommandError reports a firewall command that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// MitigationError reports a quarantine that did not succeed.
type MitigationError struct {
	Target    netip.Addr
	Attempts  int
	Retryable bool
	Err       error
}

func (e *MitigationError) Error() string {
	return fmt.Sprintf("quarantine %s failed after %d attempt(s): %v", e.Target, e.Attempts, e.Err)
}

func (e *MitigationError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether another attempt could succeed. Configuration
// and privilege problems fail the same way every time.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var me *MitigationError
	if errors.As(err, &me) {
		return me.Retryable
	}
	switch {
	case errors.Is(err, ErrCommandNotFound),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrInvalidRule),
		errors.Is(err, ErrUnsupported),
		errors.Is(err, ErrCircuitOpen),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
