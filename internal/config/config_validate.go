// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/guardian/internal/validation"
)

// ConfigError reports a missing or invalid setting. It is always fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Validate checks struct constraints, then the cross-field and filesystem rules
// that tags cannot express. The first violation is returned as *ConfigError.
func (c *Config) Validate() error {
	if err := validation.GetValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{Field: fieldPath(fe.Namespace()), Reason: describe(fe)}
		}
		return &ConfigError{Field: "config", Reason: "validation failed", Err: err}
	}

	if err := requireFile("model.path", c.Model.Path); err != nil {
		return err
	}
	if err := requireFile("model.tokenizer_path", c.Model.TokenizerPath); err != nil {
		return err
	}

	if c.Mitigation.Backend == "iptables" && c.Mitigation.IPTables.Binary == "" {
		return &ConfigError{Field: "mitigation.iptables.binary", Reason: "required for the iptables backend"}
	}
	if c.Mitigation.Backend == "nftables" && (c.Mitigation.NFTables.Table == "" || c.Mitigation.NFTables.Set == "") {
		return &ConfigError{Field: "mitigation.nftables", Reason: "table and set are required for the nftables backend"}
	}
	return nil
}

func requireFile(field, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &ConfigError{Field: field, Reason: fmt.Sprintf("cannot access %q", path), Err: err}
	}
	if info.IsDir() {
		return &ConfigError{Field: field, Reason: fmt.Sprintf("%q is a directory", path)}
	}
	return nil
}

// fieldPath turns "Config.Capture.SnapLength" into "capture.snaplength".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		rest = namespace
	}
	return strings.ToLower(rest)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "ip|cidr":
		return fmt.Sprintf("%v is not an address or CIDR", fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
