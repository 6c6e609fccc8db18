// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	xglog "github.com/ManuGH/econboard/internal/log"
)

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, code int, kind string, err error) {
	resp := errorResponse{Error: kind, RequestID: xglog.RequestIDFromContext(r.Context())}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, code, resp)
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter, r *http.Request) {
	writeErrorCode(w, r, http.StatusNotFound, "not_found", nil)
}

// writeBadGateway reports an unreachable data origin.
func writeBadGateway(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorCode(w, r, http.StatusBadGateway, "origin_unavailable", err)
}

// writeServiceUnavailable writes a 503 Service Unavailable response
func writeServiceUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorCode(w, r, http.StatusServiceUnavailable, "unavailable", err)
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorCode(w, r, http.StatusInternalServerError, "internal_error", err)
}
