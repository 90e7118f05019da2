// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package services

import (
	"context"
	"errors"

	"github.com/thejerf/suture/v4"
)

// PipelineRunner matches *pipeline.Pipeline.
type PipelineRunner interface {
	Serve(ctx context.Context) error
	Err() error
}

// PipelineService runs the detection pipeline under supervision.
//
// The pipeline is started (device opened, analyzer loaded) before the tree
// runs, so it can only be served once: any return other than cancellation
// ends the service for good. When the pipeline stops on its own (fatal
// capture error or an exhausted capture file) the service calls onStop with
// the pipeline's fatal error, which may be nil, and returns
// suture.ErrTerminateSupervisorTree so the whole process shuts down.
type PipelineService struct {
	pipeline PipelineRunner
	onStop   func(error)
	name     string
}

// NewPipelineService wraps p. onStop may be nil.
func NewPipelineService(p PipelineRunner, onStop func(error)) *PipelineService {
	return &PipelineService{
		pipeline: p,
		onStop:   onStop,
		name:     "pipeline",
	}
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	err := s.pipeline.Serve(ctx)
	switch {
	case ctx.Err() != nil && !errors.Is(err, suture.ErrTerminateSupervisorTree):
		return ctx.Err()
	case errors.Is(err, suture.ErrTerminateSupervisorTree):
		if s.onStop != nil {
			s.onStop(s.pipeline.Err())
		}
		return suture.ErrTerminateSupervisorTree
	case err == nil:
		return suture.ErrDoNotRestart
	default:
		// A second Serve on an already-served pipeline lands here too.
		if s.onStop != nil {
			s.onStop(err)
		}
		return suture.ErrTerminateSupervisorTree
	}
}

// String implements fmt.Stringer for suture logging.
func (s *PipelineService) String() string {
	return s.name
}
