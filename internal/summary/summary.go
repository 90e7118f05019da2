// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package summary reduces captured frames to short textual descriptions that the
// analyzer can tokenize.
//
// Summarize is a pure function: the same record always yields the same
// TrafficSummary, it never fails, and the text never exceeds MaxTextLength.
// Frames that cannot be decoded produce an "unparsed" summary instead of an error.
package summary

import (
	"encoding/hex"
	"net/netip"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/tomtom215/guardian/internal/capture"
)

const (
	// MaxTextLength bounds TrafficSummary.Text in bytes.
	MaxTextLength = 512

	// headBytes of an undecodable frame are hex-dumped into its summary.
	headBytes = 16

	// payloadPreview bytes of printable application payload are included.
	payloadPreview = 48
)

// TrafficSummary is the analyzer's view of one packet.
type TrafficSummary struct {
	Text     string
	Parsed   bool
	Protocol string
	Src      netip.Addr
	Dst      netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Flags    string
	Length   int
}

// Summarize describes rec. It is safe for concurrent use.
func Summarize(rec capture.PacketRecord) TrafficSummary {
	s := TrafficSummary{Src: rec.Src, Dst: rec.Dst, Length: rec.Length}

	packet := gopacket.NewPacket(rec.Data, rec.LinkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	if packet.NetworkLayer() == nil {
		return unparsed(s, rec)
	}

	var b strings.Builder
	var ttl uint8
	switch nl := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		s.Src, _ = netip.AddrFromSlice(nl.SrcIP.To4())
		s.Dst, _ = netip.AddrFromSlice(nl.DstIP.To4())
		s.Protocol = strings.ToLower(nl.Protocol.String())
		ttl = nl.TTL
	case *layers.IPv6:
		s.Src, _ = netip.AddrFromSlice(nl.SrcIP)
		s.Dst, _ = netip.AddrFromSlice(nl.DstIP)
		s.Protocol = strings.ToLower(nl.NextHeader.String())
		ttl = nl.HopLimit
	default:
		return unparsed(s, rec)
	}
	s.Parsed = true

	switch tl := packet.TransportLayer().(type) {
	case *layers.TCP:
		s.Protocol = "tcp"
		s.SrcPort, s.DstPort = uint16(tl.SrcPort), uint16(tl.DstPort)
		s.Flags = tcpFlags(tl)
	case *layers.UDP:
		s.Protocol = "udp"
		s.SrcPort, s.DstPort = uint16(tl.SrcPort), uint16(tl.DstPort)
	}

	b.WriteString("proto=")
	b.WriteString(s.Protocol)
	b.WriteString(" src=")
	b.WriteString(endpoint(s.Src, s.SrcPort))
	b.WriteString(" dst=")
	b.WriteString(endpoint(s.Dst, s.DstPort))
	if s.Flags != "" {
		b.WriteString(" flags=")
		b.WriteString(s.Flags)
	}
	if icmp, ok := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		b.WriteString(" icmp=")
		b.WriteString(strings.ToLower(strings.ReplaceAll(icmp.TypeCode.String(), " ", "_")))
	}
	if service := serviceName(s.Protocol, s.DstPort); service != "" {
		b.WriteString(" service=")
		b.WriteString(service)
	}
	b.WriteString(" ttl=")
	b.WriteString(strconv.Itoa(int(ttl)))
	b.WriteString(" len=")
	b.WriteString(strconv.Itoa(rec.Length))

	var payload []byte
	if tl := packet.TransportLayer(); tl != nil {
		payload = tl.LayerPayload()
	} else if app := packet.ApplicationLayer(); app != nil {
		payload = app.Payload()
	}
	b.WriteString(" payload=")
	b.WriteString(strconv.Itoa(len(payload)))
	if preview := printable(payload); preview != "" {
		b.WriteString(" data=")
		b.WriteString(preview)
	}
	if rec.Truncated() {
		b.WriteString(" truncated")
	}

	s.Text = bound(b.String())
	return s
}

func unparsed(s TrafficSummary, rec capture.PacketRecord) TrafficSummary {
	head := rec.Data
	if len(head) > headBytes {
		head = head[:headBytes]
	}
	s.Parsed = false
	s.Protocol = "unknown"
	s.Text = bound("unparsed link=" + strings.ToLower(rec.LinkType.String()) +
		" len=" + strconv.Itoa(rec.Length) +
		" head=" + hex.EncodeToString(head))
	return s
}

func endpoint(addr netip.Addr, port uint16) string {
	if !addr.IsValid() {
		return "?"
	}
	if port == 0 {
		return addr.String()
	}
	return netip.AddrPortFrom(addr, port).String()
}

func tcpFlags(tcp *layers.TCP) string {
	var flags []string
	for _, f := range []struct {
		set  bool
		name string
	}{
		{tcp.SYN, "SYN"},
		{tcp.ACK, "ACK"},
		{tcp.FIN, "FIN"},
		{tcp.RST, "RST"},
		{tcp.PSH, "PSH"},
		{tcp.URG, "URG"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	if len(flags) == 0 {
		return "NONE"
	}
	return strings.Join(flags, "|")
}

var wellKnown = map[uint16]string{
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	123:  "ntp",
	443:  "https",
	445:  "smb",
	3306: "mysql",
	3389: "rdp",
	5432: "postgres",
	6379: "redis",
	8080: "http-alt",
}

func serviceName(proto string, port uint16) string {
	if proto != "tcp" && proto != "udp" {
		return ""
	}
	return wellKnown[port]
}

// printable returns a sanitized prefix of payload when it looks like text.
func printable(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	n := len(payload)
	if n > payloadPreview {
		n = payloadPreview
	}
	var b strings.Builder
	printableCount := 0
	for _, c := range payload[:n] {
		switch {
		case c > 0x20 && c < 0x7f:
			b.WriteByte(c)
			printableCount++
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			b.WriteByte('_')
		default:
			b.WriteByte('.')
		}
	}
	if printableCount*2 < n {
		return ""
	}
	return b.String()
}

func bound(s string) string {
	if len(s) <= MaxTextLength {
		return s
	}
	return s[:MaxTextLength]
}
