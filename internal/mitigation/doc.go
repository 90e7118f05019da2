// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

/*
Package mitigation quarantines malicious source addresses at the host firewall.

The Executor runs decoupled from detection. The pipeline hands it targets
with Enqueue, which never blocks; a single Run loop invokes the firewall.
Every call produces a Record with one of three outcomes:

  - applied: the address is blocked, whether by this call or an earlier one
  - failed: all attempts failed; a *MitigationError is returned too
  - skipped: the address is invalid, unspecified, loopback or allowlisted

Each attempt is bounded by CommandTimeout, paced by a token bucket
(golang.org/x/time/rate) and guarded by a circuit breaker
(github.com/sony/gobreaker/v2). Retryable failures back off exponentially up
to MaxAttempts. Failures that IsRetryable rejects stop at the first attempt.

Backends:

  - CommandFirewall: iptables / ip6tables, "-C" check then "-A <chain> -s <addr> -j DROP"
  - NFTablesFirewall: adds the address to a named set over netlink (Linux only)
  - NoopFirewall: dry run, records what would have been blocked
*/
package mitigation
