// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package analyzer

import (
	"errors"
	"fmt"
)

// ErrWorkerStopped is returned by Worker.Analyze once the worker has shut down.
var ErrWorkerStopped = errors.New("analysis worker stopped")

// LoadError reports a missing or corrupt model or tokenizer. It is fatal at startup.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InferenceError reports that a single summary could not be scored. The
// summary is discarded and the worker continues.
type InferenceError struct {
	Summary string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
