// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// Package journal keeps a local, queryable history of alerts and mitigation
// outcomes in BadgerDB.
//
// The Recorder is an ordinary alert bus subscriber, so it is subject to the
// same lag policy as WebSocket sessions and can never slow detection down.
// Mitigation records arrive through mitigation.Executor.OnRecord.
//
//	j, err := journal.Open(journal.Config{Path: "/var/lib/guardian/journal", Retention: 720 * time.Hour})
//	if err != nil {
//	    return err
//	}
//	defer j.Close()
//
//	rec := journal.NewRecorder(j, bus, 0)
//	executor.OnRecord(rec.RecordMitigation)
//	supervisor.Add(rec)
//
// Keys are "alert:<detected unix nanos>:<sequence>" and
// "mitigation:<started unix nanos>:<target>". Retention is enforced with
// BadgerDB TTLs; the recorder runs value log GC periodically.
package journal
