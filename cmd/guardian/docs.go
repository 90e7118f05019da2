// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

// @title Guardian API
// @version 1.0
// @description Read-only view of the Guardian detection pipeline: counters,
// @description journaled alerts and mitigation history. Live alerts stream
// @description over the /ws WebSocket, which is not described here.
// @description
// @description All /api/v1 responses share one envelope:
// @description ```json
// @description {
// @description   "status": "error",
// @description   "data": null,
// @description   "error": {"code": "JOURNAL_DISABLED", "message": "The alert journal is not enabled"},
// @description   "metadata": {"timestamp": "2026-01-02T03:04:05Z"}
// @description }
// @description ```
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/guardian/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8080
// @BasePath /
// @schemes http
//
// @tag.name Core
// @tag.description Health and pipeline statistics
//
// @tag.name History
// @tag.description Alerts and mitigations read back from the journal
package main
