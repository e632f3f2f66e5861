package web

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/hospital-bulk/internal/core"
	"github.com/JonMunkholm/hospital-bulk/internal/logging"
	"github.com/JonMunkholm/hospital-bulk/internal/web/templates"
)

// uploadFields are the accepted form keys for the CSV, in lookup order.
var uploadFields = []string{"file", "csv"}

// handleUploadForm serves the HTML upload form.
func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.UploadPage(s.importer.MaxRows()).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render upload form", "error", err)
	}
}

// handleBulkCreate imports one CSV batch and answers with its report.
//
// Problems with the upload itself are answered with 400 before any row is
// sent. A processed batch is always 200, whatever its row outcomes.
func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		if isTooLarge(err) {
			respondError(w, r, errFileTooLarge, http.StatusBadRequest)
			return
		}
		respondError(w, r, errInvalidForm, http.StatusBadRequest)
		return
	}

	file, header, err := formFile(r, uploadFields...)
	if err != nil {
		respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isTooLarge(err) {
			respondError(w, r, errFileTooLarge, http.StatusBadRequest)
			return
		}
		respondError(w, r, errors.Join(errReadUploadedFile, err), http.StatusInternalServerError)
		return
	}

	meta := core.UploadMeta{
		FileName:  header.Filename,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}

	report, err := s.importer.Import(r.Context(), data, meta)
	if err != nil {
		var inputErr *core.InputError
		switch {
		case errors.As(err, &inputErr):
			respondError(w, r, err, http.StatusBadRequest)
		case errors.Is(err, context.Canceled):
			// The client left while waiting for a slot; nobody reads a response.
			logging.FromContext(r.Context()).Info("client disconnected before import started")
		case errors.Is(err, core.ErrTooManyImports):
			w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.Import.MaxWaitTime.Seconds())))
			respondError(w, r, err, http.StatusServiceUnavailable)
		default:
			respondError(w, r, err, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, report)
}

// formFile returns the first uploaded file found under any of keys.
func formFile(r *http.Request, keys ...string) (multipart.File, *multipart.FileHeader, error) {
	for _, key := range keys {
		file, header, err := r.FormFile(key)
		if err == nil {
			return file, header, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, nil, err
		}
	}
	return nil, nil, http.ErrMissingFile
}

// isTooLarge detects the body limit from http.MaxBytesReader, which some
// multipart paths return without wrapping.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// handleHealth reports liveness with the import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":          "ok",
		"imports":         s.importer.LimiterStatus(),
		"history_enabled": s.history != nil,
	})
}
