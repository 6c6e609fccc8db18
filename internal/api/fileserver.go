// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	xglog "github.com/ManuGH/econboard/internal/log"
	"github.com/ManuGH/econboard/internal/metrics"
)

// secureFileServer serves chart specifications and data files from dir.
// Traversal, symlink escapes and directory listings are refused.
func secureFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := xglog.WithComponentFromContext(r.Context(), "files")
		deny := func(code int, reason string) {
			logger.Warn().
				Str(xglog.FieldEvent, "file_req.denied").
				Str(xglog.FieldPath, r.URL.Path).
				Str("reason", reason).
				Msg("file request denied")
			metrics.RecordFileRequest(reason)
			http.Error(w, http.StatusText(code), code)
		}
		internal := func(err error, msg string) {
			logger.Error().Err(err).Str(xglog.FieldEvent, "file_req.internal_error").Str(xglog.FieldPath, r.URL.Path).Msg(msg)
			metrics.RecordFileRequest("internal_error")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			deny(http.StatusMethodNotAllowed, "method_not_allowed")
			return
		}

		path := r.URL.Path
		if isPathTraversal(path) {
			deny(http.StatusForbidden, "path_escape")
			return
		}
		if path == "" || strings.HasSuffix(path, "/") {
			deny(http.StatusForbidden, "directory_listing")
			return
		}

		absDir, err := filepath.Abs(dir)
		if err != nil {
			internal(err, "could not resolve data dir")
			return
		}
		realDir, err := filepath.EvalSymlinks(absDir)
		if err != nil {
			internal(err, "could not evaluate symlinks on data dir")
			return
		}

		realPath, err := filepath.EvalSymlinks(filepath.Join(absDir, filepath.FromSlash(path)))
		if err != nil {
			if os.IsNotExist(err) {
				logger.Info().Str(xglog.FieldEvent, "file_req.not_found").Str(xglog.FieldPath, path).Msg("file not found")
				metrics.RecordFileRequest("not_found")
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			internal(err, "could not evaluate symlinks")
			return
		}

		rel, err := filepath.Rel(realDir, realPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
			deny(http.StatusForbidden, "path_escape")
			return
		}

		// #nosec G304 -- realPath is contained in the data directory
		f, err := os.Open(realPath)
		if err != nil {
			internal(err, "could not open file")
			return
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Warn().Err(err).Str(xglog.FieldPath, realPath).Msg("failed to close file")
			}
		}()

		info, err := f.Stat()
		if err != nil {
			internal(err, "could not stat opened file")
			return
		}
		if info.IsDir() {
			deny(http.StatusForbidden, "directory_listing")
			return
		}

		etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "no-cache")
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			metrics.RecordFileRequest("not_modified")
			w.WriteHeader(http.StatusNotModified)
			return
		}

		if strings.HasSuffix(strings.ToLower(info.Name()), ".json") {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}

		logger.Debug().Str(xglog.FieldEvent, "file_req.allowed").Str(xglog.FieldPath, path).Msg("serving file")
		metrics.RecordFileRequest("allowed")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// isPathTraversal decodes p repeatedly, NFC-normalises it and looks for
// parent references, NUL bytes and overlong encodings of '.'.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		} else if d2, err2 := url.QueryUnescape(decoded); err2 == nil {
			decoded = d2
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	for _, pat := range []string{"..", "%00", "%c0%ae", "%e0%80%ae"} {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 || strings.Contains(decoded, `\`) {
		return true
	}

	return strings.Contains(norm.NFC.String(lower), "..")
}
