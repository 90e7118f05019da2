// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

//go:build !linux

package mitigation

import (
	"context"
	"net/netip"
)

// NFTablesFirewall is only available on Linux.
type NFTablesFirewall struct{}

// NewNFTablesFirewall returns a backend that always fails with ErrUnsupported.
func NewNFTablesFirewall(_, _ string) *NFTablesFirewall {
	return &NFTablesFirewall{}
}

func (f *NFTablesFirewall) Name() string { return "nftables" }

func (f *NFTablesFirewall) IsBlocked(context.Context, netip.Addr) (bool, error) {
	return false, ErrUnsupported
}

func (f *NFTablesFirewall) Block(context.Context, netip.Addr) error {
	return ErrUnsupported
}
