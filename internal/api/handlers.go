// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/ManuGH/econboard/internal/fetch"
	"github.com/ManuGH/econboard/internal/history"
	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/page"
)

// handlePage composes a fresh page for every request.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	rt, err := s.currentRuntime()
	if err != nil {
		writeServiceUnavailable(w, r, err)
		return
	}

	pg, err := page.ParseBytes(s.template)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	rt.Loader.Compose(r.Context(), pg, rt.Manifest)

	var buf bytes.Buffer
	if err := pg.Render(&buf); err != nil {
		writeInternal(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).Msg("client went away")
	}
}

// handleResource serves a chart specification or data file. With a data
// directory the file is read from disk; otherwise it goes through the
// fetcher so the page and its data come from the same origin.
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	rt, err := s.currentRuntime()
	if err != nil {
		writeServiceUnavailable(w, r, err)
		return
	}
	if rt.DataDir != "" {
		secureFileServer(rt.DataDir).ServeHTTP(w, r)
		return
	}
	if rt.Resources == nil {
		writeNotFound(w, r)
		return
	}

	resource := strings.TrimPrefix(r.URL.Path, "/")
	body, err := rt.Resources.Get(r.Context(), resource)
	if err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		switch {
		case errors.Is(err, fetch.ErrNotFound), errors.Is(err, fetch.ErrInvalidPath):
			writeNotFound(w, r)
		case fetch.IsTransport(err), fetch.IsStatus(err):
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "resource.origin_error").
				Str(xglog.FieldResource, resource).
				Msg("data origin request failed")
			writeBadGateway(w, r, err)
		default:
			writeInternal(w, r, err)
		}
		return
	}

	ct := mime.TypeByExtension(path.Ext(resource))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, path.Base(resource), time.Time{}, bytes.NewReader(body))
}

// SlotsResponse is the body of GET /api/v1/slots.
type SlotsResponse struct {
	Source string          `json:"source"` // "history" or "memory"
	Run    history.Run     `json:"run"`
	Slots  []history.Entry `json:"slots"`
}

// handleSlots reports the latest outcome of every slot.
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	if s.history != nil {
		run, entries, err := s.history.Latest(r.Context())
		if err != nil {
			writeInternal(w, r, err)
			return
		}
		if run.ID != "" {
			writeJSON(w, http.StatusOK, SlotsResponse{Source: "history", Run: run, Slots: entries})
			return
		}
	}

	if rt, err := s.currentRuntime(); err == nil {
		if res, ok := rt.Loader.Last(); ok {
			run, entries := res.History()
			writeJSON(w, http.StatusOK, SlotsResponse{Source: "memory", Run: run, Slots: entries})
			return
		}
	}
	writeErrorCode(w, r, http.StatusNotFound, "no_composition", errors.New("no page has been composed yet"))
}

// handleReload re-reads configuration and manifest.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		writeServiceUnavailable(w, r, errors.New("reload is not configured"))
		return
	}
	if err := s.reload(r.Context()); err != nil {
		writeErrorCode(w, r, http.StatusUnprocessableEntity, "reload_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
