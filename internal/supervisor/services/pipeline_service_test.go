// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockPipeline is a test double for PipelineRunner.
type mockPipeline struct {
	serveErr   error
	fatal      error
	serveCount atomic.Int32
	block      bool
}

func (m *mockPipeline) Serve(ctx context.Context) error {
	m.serveCount.Add(1)
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.serveErr
}

func (m *mockPipeline) Err() error {
	return m.fatal
}

func TestPipelineService_Interface(t *testing.T) {
	var _ suture.Service = (*PipelineService)(nil)
}

func TestPipelineService_Serve(t *testing.T) {
	captureErr := errors.New("capture read on eth0: device went away")

	tests := []struct {
		name       string
		pipeline   *mockPipeline
		wantErr    error
		wantStop   bool
		wantReason error
	}{
		{
			name:       "fatal capture error terminates the tree",
			pipeline:   &mockPipeline{serveErr: suture.ErrTerminateSupervisorTree, fatal: captureErr},
			wantErr:    suture.ErrTerminateSupervisorTree,
			wantStop:   true,
			wantReason: captureErr,
		},
		{
			name:     "exhausted capture file terminates cleanly",
			pipeline: &mockPipeline{serveErr: suture.ErrTerminateSupervisorTree},
			wantErr:  suture.ErrTerminateSupervisorTree,
			wantStop: true,
		},
		{
			name:       "pipeline that was never started",
			pipeline:   &mockPipeline{serveErr: suture.ErrDoNotRestart},
			wantErr:    suture.ErrTerminateSupervisorTree,
			wantStop:   true,
			wantReason: suture.ErrDoNotRestart,
		},
		{
			name:     "nil return is not restarted",
			pipeline: &mockPipeline{},
			wantErr:  suture.ErrDoNotRestart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stopped bool
			var reason error
			svc := NewPipelineService(tt.pipeline, func(err error) {
				stopped = true
				reason = err
			})

			err := svc.Serve(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Serve() error = %v, want %v", err, tt.wantErr)
			}
			if stopped != tt.wantStop {
				t.Errorf("onStop called = %v, want %v", stopped, tt.wantStop)
			}
			if !errors.Is(reason, tt.wantReason) && !(reason == nil && tt.wantReason == nil) {
				t.Errorf("onStop reason = %v, want %v", reason, tt.wantReason)
			}
		})
	}
}

func TestPipelineService_Cancellation(t *testing.T) {
	p := &mockPipeline{block: true}
	called := false
	svc := NewPipelineService(p, func(error) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if called {
		t.Error("onStop must not run for a requested shutdown")
	}
	if svc.String() != "pipeline" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestPipelineService_NotRestartedBySupervisor(t *testing.T) {
	p := &mockPipeline{serveErr: suture.ErrTerminateSupervisorTree}
	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewPipelineService(p, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Serve(ctx)

	if !errors.Is(err, suture.ErrTerminateSupervisorTree) {
		t.Logf("supervisor returned: %v", err)
	}
	if got := p.serveCount.Load(); got != 1 {
		t.Errorf("pipeline served %d times, want 1", got)
	}
}
