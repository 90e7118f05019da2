// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/guardian/internal/alertbus"
	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/metrics"
	"github.com/tomtom215/guardian/internal/mitigation"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("journal closed")
)

// Key prefixes. Keys sort by detection time, so reverse iteration yields the
// most recent records first.
const (
	prefixAlert      = "alert:"
	prefixMitigation = "mitigation:"
)

// gcDiscardRatio is the fraction of stale data that makes a value log file
// worth rewriting.
const gcDiscardRatio = 0.5

// Config configures the journal.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// Retention expires records after this long. Zero keeps them forever.
	Retention time.Duration

	// InMemory keeps the journal in memory only (tests, dry runs).
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool
}

// Stats reports journal activity since Open.
type Stats struct {
	Alerts      int64 `json:"alerts"`
	Mitigations int64 `json:"mitigations"`
	Errors      int64 `json:"errors"`
}

// Journal persists alerts and mitigation records to BadgerDB.
type Journal struct {
	db  *badger.DB
	cfg Config

	alerts      atomic.Int64
	mitigations atomic.Int64
	errors      atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the journal.
func Open(cfg Config) (*Journal, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("journal path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("retention", cfg.Retention).
		Msg("Journal opened")
	return &Journal{db: db, cfg: cfg}, nil
}

// RecordAlert stores a published alert.
func (j *Journal) RecordAlert(a alertbus.Alert) error {
	key := fmt.Sprintf("%s%020d:%020d", prefixAlert, a.DetectedAt.UnixNano(), a.Sequence)
	err := j.put("alert", key, a)
	if err == nil {
		j.alerts.Add(1)
	}
	return err
}

// RecordMitigation stores a mitigation outcome. Its signature matches
// mitigation.Executor.OnRecord except for the error, which the caller logs.
func (j *Journal) RecordMitigation(r mitigation.Record) error {
	key := fmt.Sprintf("%s%020d:%s", prefixMitigation, r.Started.UnixNano(), r.Target)
	err := j.put("mitigation", key, r)
	if err == nil {
		j.mitigations.Add(1)
	}
	return err
}

func (j *Journal) put(kind, key string, v interface{}) (err error) {
	defer func() {
		metrics.RecordJournalWrite(kind, err)
		if err != nil && !errors.Is(err, ErrClosed) {
			j.errors.Add(1)
		}
	}()

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	err = j.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if j.cfg.Retention > 0 {
			e = e.WithTTL(j.cfg.Retention)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (j *Journal) RecentAlerts(ctx context.Context, limit int) ([]alertbus.Alert, error) {
	var out []alertbus.Alert
	err := j.scanNewest(ctx, prefixAlert, limit, func(val []byte) error {
		var a alertbus.Alert
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

// RecentMitigations returns up to limit mitigation records, newest first.
func (j *Journal) RecentMitigations(ctx context.Context, limit int) ([]mitigation.Record, error) {
	var out []mitigation.Record
	err := j.scanNewest(ctx, prefixMitigation, limit, func(val []byte) error {
		var r mitigation.Record
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// scanNewest walks prefix in reverse key order. Malformed values are logged
// and skipped.
func (j *Journal) scanNewest(ctx context.Context, prefix string, limit int, decode func([]byte) error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	if limit <= 0 {
		return nil
	}

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Seek([]byte(prefix + "\xff")); it.ValidForPrefix([]byte(prefix)) && n < limit; it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			err := item.Value(decode)
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Journal failed to decode record")
				continue
			}
			n++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	return nil
}

// RunGC rewrites value log files until BadgerDB reports nothing left to
// reclaim. In-memory journals have no value log.
func (j *Journal) RunGC() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	if j.cfg.InMemory {
		return nil
	}

	metrics.JournalCompactions.Inc()
	for {
		err := j.db.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
			return nil
		default:
			return fmt.Errorf("value log GC: %w", err)
		}
	}
}

// Stats returns write counts since Open.
func (j *Journal) Stats() Stats {
	return Stats{
		Alerts:      j.alerts.Load(),
		Mitigations: j.mitigations.Load(),
		Errors:      j.errors.Load(),
	}
}

// Close flushes and closes the database. It is safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Int64("alerts", j.alerts.Load()).Int64("mitigations", j.mitigations.Load()).Msg("Journal closed")
	return nil
}
