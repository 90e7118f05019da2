// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package mitigation

import (
	"context"
	"net/netip"
	"sort"
	"sync"

	"github.com/tomtom215/guardian/internal/logging"
)

// Firewall is the host-level block action. Block must be idempotent: blocking
// an address twice leaves a single rule in place and does not error.
type Firewall interface {
	Name() string
	IsBlocked(ctx context.Context, addr netip.Addr) (bool, error)
	Block(ctx context.Context, addr netip.Addr) error
}

// NoopFirewall is the dry-run backend. It remembers what it would have
// blocked and never touches the host.
type NoopFirewall struct {
	mu      sync.Mutex
	blocked map[netip.Addr]struct{}
}

// NewNoopFirewall returns an empty dry-run firewall.
func NewNoopFirewall() *NoopFirewall {
	return &NoopFirewall{blocked: make(map[netip.Addr]struct{})}
}

func (f *NoopFirewall) Name() string { return "noop" }

func (f *NoopFirewall) IsBlocked(_ context.Context, addr netip.Addr) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blocked[addr]
	return ok, nil
}

func (f *NoopFirewall) Block(_ context.Context, addr netip.Addr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blocked[addr]; !ok {
		f.blocked[addr] = struct{}{}
		logging.Info().Str("target", addr.String()).Msg("[DRY RUN] Would quarantine address")
	}
	return nil
}

// Blocked returns the addresses recorded so far in sorted order.
func (f *NoopFirewall) Blocked() []netip.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]netip.Addr, 0, len(f.blocked))
	for a := range f.blocked {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
