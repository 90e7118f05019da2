// Guardian - Real-time Network Threat Detection and Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guardian

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/guardian/internal/logging"
	"github.com/tomtom215/guardian/internal/validation"
)

// Response is the envelope for every /api/v1 response.
type Response struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *Error      `json:"error,omitempty"`
}

// Metadata carries per-response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
}

// Error is the machine-readable error body.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error codes.
const (
	CodeValidation       = validation.Code
	CodeJournalDisabled  = "JOURNAL_DISABLED"
	CodeJournalError     = "JOURNAL_ERROR"
	CodeRateLimited      = "RATE_LIMITED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, data interface{}, count *int) {
	respondJSON(w, http.StatusOK, &Response{
		Status:   "success",
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC(), Count: count},
	})
}

// respondError sends an error response. err, when set, is logged and never
// returned to the client.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}

	respondJSON(w, status, &Response{
		Status:   "error",
		Metadata: Metadata{Timestamp: time.Now().UTC()},
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}

// sanitizeLogValue strips line breaks so client-influenced strings cannot
// forge log entries.
func sanitizeLogValue(s string) string {
	return strings.NewReplacer("\n", "\\n", "\r", "\\r").Replace(s)
}
