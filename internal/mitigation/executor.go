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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
)

// Defaults applied by NewExecutor to zero Config fields.
const (
	DefaultActionThreshold = 0.9
	DefaultMaxAttempts     = 3
	DefaultInitialBackoff  = 200 * time.Millisecond
	DefaultCommandTimeout  = 5 * time.Second
	DefaultQueueSize       = 64
	DefaultRatePerSecond   = 5
	DefaultBurst           = 10
)

// Config configures an Executor.
type Config struct {
	// ActionThreshold is the minimum severity that triggers quarantine.
	ActionThreshold float64
	MaxAttempts     int
	InitialBackoff  time.Duration
	// CommandTimeout bounds each attempt against the firewall.
	CommandTimeout time.Duration
	QueueSize      int
	RatePerSecond  float64
	Burst          int
	// Allowlist holds networks that are never quarantined.
	Allowlist []netip.Prefix
	// BreakerTimeout is how long the circuit stays open. Zero uses 30s.
	BreakerTimeout time.Duration
}

// ParseAllowlist parses addresses and CIDR prefixes.
func ParseAllowlist(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("allowlist entry %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("allowlist entry %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

type request struct {
	addr     netip.Addr
	severity float64
}

// Executor applies quarantine actions. Detection code hands targets over
// with Enqueue and never waits; Run is the single task that invokes the
// firewall. Mitigate may also be called directly, for example from the CLI.
type Executor struct {
	fw       Firewall
	cfg      Config
	counters *metrics.Counters
	cb       *gobreaker.CircuitBreaker[interface{}]
	limiter  *rate.Limiter
	logger   zerolog.Logger

	queue chan request

	// opMu serializes firewall changes.
	opMu sync.Mutex

	mu          sync.Mutex
	quarantined map[netip.Addr]time.Time
	sinks       []func(Record)
	stopped     bool
	pending     sync.WaitGroup
}

// NewExecutor creates an executor for fw. A nil counters uses a private set.
func NewExecutor(fw Firewall, cfg Config, counters *metrics.Counters) *Executor {
	if cfg.ActionThreshold <= 0 {
		cfg.ActionThreshold = DefaultActionThreshold
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialBackoff < 0 {
		cfg.InitialBackoff = 0
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = breakerOpenTimeout
	}
	if counters == nil {
		counters = metrics.NewCounters()
	}

	return &Executor{
		fw:          fw,
		cfg:         cfg,
		counters:    counters,
		cb:          newBreaker(fw.Name(), cfg.BreakerTimeout),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:      logging.WithComponent("mitigation").With().Str("backend", fw.Name()).Logger(),
		queue:       make(chan request, cfg.QueueSize),
		quarantined: make(map[netip.Addr]time.Time),
	}
}

// Backend returns the firewall name.
func (e *Executor) Backend() string {
	return e.fw.Name()
}

// OnRecord registers fn to receive every finished Record. Register sinks
// before starting Run; fn must not block.
func (e *Executor) OnRecord(fn func(Record)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, fn)
}

// ShouldMitigate reports whether a threat from source at severity meets the
// action threshold. An unknown source never qualifies.
func (e *Executor) ShouldMitigate(source netip.Addr, severity float64) bool {
	return source.IsValid() && severity >= e.cfg.ActionThreshold
}

// Enqueue hands a target to Run without blocking. It returns false when the
// queue is full or the executor is shutting down.
func (e *Executor) Enqueue(addr netip.Addr, severity float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return false
	}
	e.pending.Add(1)
	select {
	case e.queue <- request{addr: addr, severity: severity}:
		return true
	default:
		e.pending.Done()
		e.logger.Warn().Str("target", addr.String()).Int("queue_size", e.cfg.QueueSize).Msg("Mitigation queue full, dropping request")
		return false
	}
}

// Run processes queued targets until ctx is done. Attempts in flight when
// ctx ends are abandoned; targets still queued are recorded as skipped.
func (e *Executor) Run(ctx context.Context) error {
	e.logger.Info().Float64("action_threshold", e.cfg.ActionThreshold).Int("max_attempts", e.cfg.MaxAttempts).Msg("Mitigation executor started")
	for {
		// Cancellation wins over queued work.
		select {
		case <-ctx.Done():
			e.abandonQueued()
			e.logger.Info().Msg("Mitigation executor stopped")
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			e.abandonQueued()
			e.logger.Info().Msg("Mitigation executor stopped")
			return nil
		case req := <-e.queue:
			_, _ = e.mitigate(ctx, req.addr, req.severity)
			e.pending.Done()
		}
	}
}

// Shutdown stops accepting new targets and waits for the queue to empty or
// ctx to end, whichever comes first. The caller then cancels Run's context.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.logger.Warn().Msg("Mitigation grace period expired, abandoning in-flight attempts")
		return ctx.Err()
	}
}

func (e *Executor) abandonQueued() {
	for {
		select {
		case req := <-e.queue:
			e.finish(Record{
				Target:   req.addr,
				Action:   ActionQuarantine,
				Outcome:  OutcomeSkipped,
				Reason:   ReasonShutdown,
				Backend:  e.fw.Name(),
				Severity: req.severity,
				Started:  time.Now(),
			})
			e.pending.Done()
		default:
			return
		}
	}
}

// Mitigate quarantines addr. It is idempotent: an address already
// quarantined reports OutcomeApplied without invoking the firewall again.
// A failure returns an OutcomeFailed record and a *MitigationError.
func (e *Executor) Mitigate(ctx context.Context, addr netip.Addr) (Record, error) {
	return e.mitigate(ctx, addr, 0)
}

func (e *Executor) mitigate(ctx context.Context, addr netip.Addr, severity float64) (Record, error) {
	rec := Record{
		Target:   addr,
		Action:   ActionQuarantine,
		Backend:  e.fw.Name(),
		Severity: severity,
		Started:  time.Now(),
	}

	if reason := e.skipReason(addr); reason != "" {
		rec.Outcome = OutcomeSkipped
		rec.Reason = reason
		e.finish(rec)
		return rec, nil
	}
	addr = addr.Unmap()
	rec.Target = addr

	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.IsQuarantined(addr) {
		rec.Outcome = OutcomeApplied
		rec.Reason = ReasonAlreadyQuarantined
		rec.Duration = time.Since(rec.Started)
		e.finish(rec)
		return rec, nil
	}

	attempts, err := e.retryWithBackoff(ctx, addr)
	rec.Attempts = attempts
	rec.Duration = time.Since(rec.Started)

	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.Reason = err.Error()
		e.finish(rec)
		return rec, &MitigationError{Target: addr, Attempts: attempts, Retryable: IsRetryable(err), Err: err}
	}

	e.mu.Lock()
	e.quarantined[addr] = time.Now()
	e.mu.Unlock()

	rec.Outcome = OutcomeApplied
	e.finish(rec)
	return rec, nil
}

// retryWithBackoff runs attempt up to MaxAttempts times, doubling the delay
// after each retryable failure.
func (e *Executor) retryWithBackoff(ctx context.Context, addr netip.Addr) (int, error) {
	var err error
	delay := e.cfg.InitialBackoff
	attempts := 0

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}

		attempts++
		err = e.attempt(ctx, addr)
		if err == nil {
			return attempts, nil
		}
		if !IsRetryable(err) {
			return attempts, err
		}

		if attempt < e.cfg.MaxAttempts-1 {
			e.logger.Warn().Err(err).Str("target", addr.String()).Int("attempt", attempt+1).Int("max_attempts", e.cfg.MaxAttempts).Dur("delay", delay).Msg("Retry attempt")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return attempts, ctx.Err()
			}
			delay *= 2
		}
	}

	return attempts, fmt.Errorf("max retry attempts reached: %w", err)
}

// attempt performs one rate-limited, breaker-guarded, time-bounded check and
// block against the firewall.
func (e *Executor) attempt(ctx context.Context, addr netip.Addr) error {
	if err := e.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	_, err := e.cb.Execute(func() (interface{}, error) {
		actx, cancel := context.WithTimeout(ctx, e.cfg.CommandTimeout)
		defer cancel()

		blocked, err := e.fw.IsBlocked(actx, addr)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, nil
		}
		return nil, e.fw.Block(actx, addr)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

func (e *Executor) skipReason(addr netip.Addr) string {
	switch {
	case !addr.IsValid():
		return ReasonInvalidAddress
	case addr.IsUnspecified():
		return ReasonUnspecified
	case addr.Unmap().IsLoopback():
		return ReasonLoopback
	}
	u := addr.Unmap()
	for _, p := range e.cfg.Allowlist {
		if p.Contains(u) {
			return ReasonAllowlisted
		}
	}
	return ""
}

func (e *Executor) finish(rec Record) {
	e.counters.MitigationOutcome(string(rec.Outcome))
	metrics.RecordMitigation(rec.Backend, string(rec.Outcome), rec.Duration)

	var event *zerolog.Event
	switch rec.Outcome {
	case OutcomeApplied:
		event = e.logger.Info()
	case OutcomeFailed:
		event = e.logger.Error()
	default:
		event = e.logger.Debug()
	}
	event.Str("target", rec.Target.String()).
		Str("outcome", string(rec.Outcome)).
		Str("reason", rec.Reason).
		Int("attempts", rec.Attempts).
		Dur("duration", rec.Duration).
		Msg("Mitigation finished")

	e.mu.Lock()
	sinks := e.sinks
	e.mu.Unlock()
	for _, fn := range sinks {
		fn(rec)
	}
}

// IsQuarantined reports whether this executor has quarantined addr.
func (e *Executor) IsQuarantined(addr netip.Addr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.quarantined[addr.Unmap()]
	return ok
}

// Quarantined returns every address quarantined so far in sorted order.
func (e *Executor) Quarantined() []netip.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]netip.Addr, 0, len(e.quarantined))
	for a := range e.quarantined {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
