// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package capturetest provides synthetic frames and scripted sources for tests.
package capturetest

import (
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/tomtom215/guardian/internal/capture"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// TCPFlags selects the flags set on a synthetic TCP segment.
type TCPFlags struct {
	SYN, ACK, FIN, RST, PSH bool
}

// TCPFrame serializes an Ethernet/IPv4/TCP frame.
func TCPFrame(src, dst string, sport, dport uint16, flags TCPFlags, payload []byte) []byte {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(sport),
		DstPort: layers.TCPPort(dport),
		Seq:     1,
		Window:  64240,
		SYN:     flags.SYN,
		ACK:     flags.ACK,
		FIN:     flags.FIN,
		RST:     flags.RST,
		PSH:     flags.PSH,
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	return serialize(layers.EthernetTypeIPv4, ip, tcp, gopacket.Payload(payload))
}

// UDPFrame serializes an Ethernet/IPv4/UDP frame.
func UDPFrame(src, dst string, sport, dport uint16, payload []byte) []byte {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(layers.EthernetTypeIPv4, ip, udp, gopacket.Payload(payload))
}

// ICMPEchoFrame serializes an Ethernet/IPv4/ICMP echo request.
func ICMPEchoFrame(src, dst string) []byte {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	return serialize(layers.EthernetTypeIPv4, ip, icmp)
}

// TCP6Frame serializes an Ethernet/IPv6/TCP frame.
func TCP6Frame(src, dst string, sport, dport uint16, flags TCPFlags) []byte {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolTCP,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(sport),
		DstPort: layers.TCPPort(dport),
		Window:  64240,
		SYN:     flags.SYN,
		ACK:     flags.ACK,
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	return serialize(layers.EthernetTypeIPv6, ip, tcp)
}

func serialize(ethType layers.EthernetType, ls ...gopacket.SerializableLayer) []byte {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: ethType}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, append([]gopacket.SerializableLayer{eth}, ls...)...); err != nil {
		panic(err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

// Record wraps an Ethernet frame in a PacketRecord.
func Record(frame []byte) capture.PacketRecord {
	return capture.NewRecord(frame, gopacket.CaptureInfo{
		Timestamp:     time.Unix(1700000000, 0),
		CaptureLength: len(frame),
		Length:        len(frame),
	}, layers.LinkTypeEthernet)
}

// Step is one scripted result of ScriptedSource.Next.
type Step struct {
	Record capture.PacketRecord
	Err    error
}

// ScriptedSource replays Steps, then either ends (capture.ErrSourceClosed) or,
// with Block set, waits for Push or Close like an idle live device.
type ScriptedSource struct {
	mu     sync.Mutex
	steps  []Step
	block  bool
	ready  chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewScriptedSource returns a source that yields steps in order.
func NewScriptedSource(block bool, steps ...Step) *ScriptedSource {
	return &ScriptedSource{
		steps:  steps,
		block:  block,
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Push appends more steps and wakes a blocked Next.
func (s *ScriptedSource) Push(steps ...Step) {
	s.mu.Lock()
	s.steps = append(s.steps, steps...)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *ScriptedSource) Next() (capture.PacketRecord, error) {
	for {
		s.mu.Lock()
		if len(s.steps) > 0 {
			st := s.steps[0]
			s.steps = s.steps[1:]
			s.mu.Unlock()
			return st.Record, st.Err
		}
		s.mu.Unlock()

		if !s.block || s.IsClosed() {
			return capture.PacketRecord{}, capture.ErrSourceClosed
		}
		select {
		case <-s.closed:
			return capture.PacketRecord{}, capture.ErrSourceClosed
		case <-s.ready:
		}
	}
}

func (s *ScriptedSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// IsClosed reports whether Close has been called.
func (s *ScriptedSource) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Addr parses an address or panics.
func Addr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}
