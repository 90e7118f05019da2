// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

//go:build linux

package mitigation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/nftables"
	"golang.org/x/sys/unix"
)

// NFTablesFirewall quarantines addresses by adding them to named sets in an
// inet table over netlink. The operator owns the table, the sets and the
// drop rule referencing them:
//
//	table inet guardian {
//	    set quarantine  { type ipv4_addr; }
//	    set quarantine6 { type ipv6_addr; }
//	    chain input {
//	        type filter hook input priority 0;
//	        ip saddr @quarantine drop
//	        ip6 saddr @quarantine6 drop
//	    }
//	}
//
// Set membership makes Block idempotent without a separate check.
type NFTablesFirewall struct {
	table string
	set   string
}

// NewNFTablesFirewall returns a backend using table and set. IPv6 addresses
// go to the set named set+"6".
func NewNFTablesFirewall(table, set string) *NFTablesFirewall {
	return &NFTablesFirewall{table: table, set: set}
}

func (f *NFTablesFirewall) Name() string { return "nftables" }

func (f *NFTablesFirewall) IsBlocked(ctx context.Context, addr netip.Addr) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	conn, set, err := f.open(addr)
	if err != nil {
		return false, err
	}
	elements, err := conn.GetSetElements(set)
	if err != nil {
		return false, classifyNetlinkError("list set elements", err)
	}
	key := addr.Unmap().AsSlice()
	for _, e := range elements {
		if bytes.Equal(e.Key, key) {
			return true, nil
		}
	}
	return false, nil
}

func (f *NFTablesFirewall) Block(ctx context.Context, addr netip.Addr) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, set, err := f.open(addr)
	if err != nil {
		return err
	}
	if err := conn.SetAddElements(set, []nftables.SetElement{{Key: addr.Unmap().AsSlice()}}); err != nil {
		return classifyNetlinkError("add set element", err)
	}
	if err := conn.Flush(); err != nil {
		return classifyNetlinkError("flush", err)
	}
	return nil
}

func (f *NFTablesFirewall) setName(addr netip.Addr) string {
	if addr.Unmap().Is6() {
		return f.set + "6"
	}
	return f.set
}

func (f *NFTablesFirewall) open(addr netip.Addr) (*nftables.Conn, *nftables.Set, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, nil, classifyNetlinkError("open netlink", err)
	}

	tables, err := conn.ListTablesOfFamily(nftables.TableFamilyINet)
	if err != nil {
		return nil, nil, classifyNetlinkError("list tables", err)
	}
	var table *nftables.Table
	for _, t := range tables {
		if t.Name == f.table {
			table = t
			break
		}
	}
	if table == nil {
		return nil, nil, fmt.Errorf("table inet %s: %w", f.table, ErrInvalidRule)
	}

	name := f.setName(addr)
	set, err := conn.GetSetByName(table, name)
	if err != nil {
		return nil, nil, fmt.Errorf("set %s in table inet %s: %w", name, f.table, classifyNetlinkError("get set", err))
	}
	return conn, set, nil
}

func classifyNetlinkError(op string, err error) error {
	switch {
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return fmt.Errorf("nftables %s: %w", op, ErrPermissionDenied)
	case errors.Is(err, unix.ENOENT):
		return fmt.Errorf("nftables %s: %w", op, ErrInvalidRule)
	default:
		return fmt.Errorf("nftables %s: %w", op, err)
	}
}
