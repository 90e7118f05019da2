// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package pcapsource implements capture.Source on top of libpcap.
package pcapsource

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/rs/zerolog"

	"github.com/tomtom215/guardian/internal/capture"
	"github.com/tomtom215/guardian/internal/logging"
)

// Source reads frames from a libpcap handle, live or offline.
type Source struct {
	handle    *pcap.Handle
	iface     string
	linkType  layers.LinkType
	closed    atomic.Bool
	closeOnce sync.Once
	logger    zerolog.Logger
}

// Open activates a live capture on cfg.Interface.
//
// The interface must exist and the process must be allowed to capture on it;
// both failures are fatal *capture.CaptureError values. Promiscuous mode, when
// requested, lasts until Close.
func Open(cfg capture.Config) (*Source, error) {
	cfg = cfg.WithDefaults()

	if err := ensureDevice(cfg.Interface); err != nil {
		return nil, err
	}

	inactive, err := pcap.NewInactiveHandle(cfg.Interface)
	if err != nil {
		return nil, capture.ClassifyOpenError(cfg.Interface, err)
	}
	defer inactive.CleanUp()

	for _, set := range []func() error{
		func() error { return inactive.SetSnapLen(cfg.SnapLength) },
		func() error { return inactive.SetPromisc(cfg.Promiscuous) },
		func() error { return inactive.SetTimeout(cfg.ReadTimeout) },
	} {
		if err := set(); err != nil {
			return nil, capture.ClassifyOpenError(cfg.Interface, err)
		}
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, capture.ClassifyOpenError(cfg.Interface, err)
	}

	if cfg.BPFFilter != "" {
		if err := handle.SetBPFFilter(cfg.BPFFilter); err != nil {
			handle.Close()
			return nil, &capture.CaptureError{
				Kind: capture.KindFilter, Interface: cfg.Interface, Fatal: true,
				Err: fmt.Errorf("filter %q: %w", cfg.BPFFilter, err),
			}
		}
	}

	s := newSource(handle, cfg.Interface)
	s.logger.Info().
		Bool("promiscuous", cfg.Promiscuous).
		Int("snap_length", cfg.SnapLength).
		Str("filter", cfg.BPFFilter).
		Str("link_type", s.linkType.String()).
		Msg("Capture device opened")
	return s, nil
}

// OpenOffline replays a pcap file. Next returns capture.ErrSourceClosed at end of file.
func OpenOffline(path string) (*Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, &capture.CaptureError{Kind: capture.KindOpen, Interface: path, Fatal: true, Err: err}
	}
	return newSource(handle, path), nil
}

func newSource(handle *pcap.Handle, name string) *Source {
	return &Source{
		handle:   handle,
		iface:    name,
		linkType: handle.LinkType(),
		logger:   logging.WithComponent("capture").With().Str("interface", name).Logger(),
	}
}

func ensureDevice(iface string) error {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return capture.ClassifyOpenError(iface, err)
	}
	for i := range devs {
		if devs[i].Name == iface {
			return nil
		}
	}
	return &capture.CaptureError{
		Kind: capture.KindDeviceNotFound, Interface: iface, Fatal: true,
		Err: fmt.Errorf("%d capture devices available", len(devs)),
	}
}

// Next blocks until a frame arrives. Read timeouts are retried internally so
// that Close is observed within one timeout period.
func (s *Source) Next() (capture.PacketRecord, error) {
	for {
		if s.closed.Load() {
			return capture.PacketRecord{}, capture.ErrSourceClosed
		}

		data, ci, err := s.handle.ReadPacketData()
		switch {
		case err == nil:
			return capture.NewRecord(data, ci, s.linkType), nil
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF), errors.Is(err, pcap.NextErrorNoMorePackets):
			return capture.PacketRecord{}, capture.ErrSourceClosed
		default:
			return capture.PacketRecord{}, &capture.CaptureError{Kind: capture.KindRead, Interface: s.iface, Err: err}
		}
	}
}

// Close releases the device. libpcap restores the interface's previous
// promiscuous setting when the handle is closed.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if stats, err := s.handle.Stats(); err == nil {
			s.logger.Info().
				Int("received", stats.PacketsReceived).
				Int("dropped_kernel", stats.PacketsDropped).
				Int("dropped_interface", stats.PacketsIfDropped).
				Msg("Capture device closed")
		}
		s.handle.Close()
	})
	return nil
}
