// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package capture

import (
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// PacketRecord is one captured frame. Data is owned by the record and is never
// longer than the snapshot length it was captured with.
type PacketRecord struct {
	Timestamp     time.Time
	Length        int // length on the wire
	CaptureLength int
	Data          []byte
	LinkType      layers.LinkType

	// Src and Dst are the network-layer addresses when the frame parsed far
	// enough; the zero netip.Addr otherwise.
	Src netip.Addr
	Dst netip.Addr
}

// Truncated reports whether the frame was cut at the snapshot length.
func (r PacketRecord) Truncated() bool {
	return r.CaptureLength < r.Length
}

// NewRecord builds a PacketRecord from raw capture data and fills in the
// addresses on a best-effort basis.
func NewRecord(data []byte, ci gopacket.CaptureInfo, linkType layers.LinkType) PacketRecord {
	rec := PacketRecord{
		Timestamp:     ci.Timestamp,
		Length:        ci.Length,
		CaptureLength: ci.CaptureLength,
		Data:          data,
		LinkType:      linkType,
	}
	if rec.CaptureLength == 0 {
		rec.CaptureLength = len(data)
	}
	if rec.Length == 0 {
		rec.Length = rec.CaptureLength
	}
	rec.Src, rec.Dst = ParseAddrs(data, linkType)
	return rec
}

// ParseAddrs extracts the IPv4 or IPv6 source and destination of a frame.
// Unparseable frames yield zero addresses.
func ParseAddrs(data []byte, linkType layers.LinkType) (src, dst netip.Addr) {
	packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	switch nl := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		src, _ = netip.AddrFromSlice(nl.SrcIP.To4())
		dst, _ = netip.AddrFromSlice(nl.DstIP.To4())
	case *layers.IPv6:
		src, _ = netip.AddrFromSlice(nl.SrcIP)
		dst, _ = netip.AddrFromSlice(nl.DstIP)
	}
	return src, dst
}
