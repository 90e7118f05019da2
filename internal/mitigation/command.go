// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package mitigation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os/exec"
	"strings"
)

// Runner executes a command and reports its exit status. A non-zero exit is
// not an error; err is reserved for failing to run the command at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (exitCode int, output []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (int, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return -1, out, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, out, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), out, nil
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return -1, out, fmt.Errorf("%s: %w", name, ErrCommandNotFound)
	case errors.Is(err, fs.ErrPermission):
		return -1, out, fmt.Errorf("%s: %w", name, ErrPermissionDenied)
	default:
		return -1, out, err
	}
}

// CommandConfig configures CommandFirewall.
type CommandConfig struct {
	Binary   string
	Binary6  string
	Chain    string
	WaitLock bool
}

// CommandFirewall quarantines addresses with iptables (ip6tables for IPv6)
// by appending "-s <addr> -j DROP" to the configured chain. A "-C" check runs
// first so repeated blocks never duplicate the rule.
type CommandFirewall struct {
	cfg    CommandConfig
	runner Runner
}

// NewCommandFirewall returns a command firewall. A nil runner uses ExecRunner.
func NewCommandFirewall(cfg CommandConfig, runner Runner) *CommandFirewall {
	if cfg.Binary == "" {
		cfg.Binary = "iptables"
	}
	if cfg.Binary6 == "" {
		cfg.Binary6 = "ip6tables"
	}
	if cfg.Chain == "" {
		cfg.Chain = "INPUT"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CommandFirewall{cfg: cfg, runner: runner}
}

func (f *CommandFirewall) Name() string { return "iptables" }

// IsBlocked runs "<binary> -C <chain> -s <addr> -j DROP". Exit status 0 means
// the rule exists, 1 means it does not.
func (f *CommandFirewall) IsBlocked(ctx context.Context, addr netip.Addr) (bool, error) {
	bin, args := f.command("-C", addr)
	code, out, err := f.runner.Run(ctx, bin, args...)
	if err != nil {
		return false, err
	}
	switch code {
	case 0:
		return true, nil
	case 1:
		if isPermissionOutput(out) {
			return false, commandError(bin, code, out)
		}
		return false, nil
	default:
		return false, commandError(bin, code, out)
	}
}

// Block runs "<binary> -A <chain> -s <addr> -j DROP".
func (f *CommandFirewall) Block(ctx context.Context, addr netip.Addr) error {
	bin, args := f.command("-A", addr)
	code, out, err := f.runner.Run(ctx, bin, args...)
	if err != nil {
		return err
	}
	if code != 0 {
		return commandError(bin, code, out)
	}
	return nil
}

func (f *CommandFirewall) command(op string, addr netip.Addr) (string, []string) {
	addr = addr.Unmap()
	bin := f.cfg.Binary
	if addr.Is6() {
		bin = f.cfg.Binary6
	}
	args := make([]string, 0, 8)
	if f.cfg.WaitLock {
		args = append(args, "-w")
	}
	args = append(args, op, f.cfg.Chain, "-s", addr.String(), "-j", "DROP")
	return bin, args
}

// commandError classifies a non-zero exit. iptables exits 2 for bad
// arguments and 4 for resource problems, which include both lock contention
// and running without root.
func commandError(bin string, code int, out []byte) error {
	ce := &CommandError{Command: bin, ExitCode: code, Output: strings.TrimSpace(string(out))}
	switch {
	case isPermissionOutput(out):
		ce.Err = ErrPermissionDenied
	case code == 2:
		ce.Err = ErrInvalidRule
	case code == 127:
		ce.Err = ErrCommandNotFound
	}
	return ce
}

func isPermissionOutput(out []byte) bool {
	lower := bytes.ToLower(out)
	return bytes.Contains(lower, []byte("permission denied")) || bytes.Contains(lower, []byte("must be root"))
}
