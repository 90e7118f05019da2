// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

/*
Package capture reads raw frames from a live network interface.

A Source yields one PacketRecord per captured frame. The libpcap implementation
lives in the pcapsource subpackage (gopacket/pcap, cgo) so that this package and
its consumers build and test without libpcap. A live source is opened once for
the life of the process,
optionally in promiscuous mode, and closed on shutdown, which releases the
device and restores its previous mode.

Loop drives a Source on its own goroutine. Transient read errors skip a single
packet; MaxConsecutiveErrors of them in a row escalate to a fatal CaptureError.
Device-not-found and permission-denied are fatal at Open.

	src, err := pcapsource.Open(capture.Config{Interface: "eth0", Promiscuous: true})
	if err != nil {
	    return err // *capture.CaptureError
	}
	loop := capture.NewLoop(src, handle, counters, 100)
	err = loop.Run(ctx)
*/
package capture
