package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/hospital-bulk/internal/history"
	"github.com/go-chi/chi/v5"
)

// handleListImports returns recent batches, newest first.
// Query: ?limit=N (default 50).
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, r, errHistoryDisabled, http.StatusNotFound)
		return
	}

	limit := parseIntParam(r, "limit", history.DefaultListLimit)
	batches, err := s.history.ListRecent(r.Context(), limit)
	if err != nil {
		respondError(w, r, errors.Join(errHistoryUnreadable, err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{"imports": batches})
}

// handleGetImport returns one recorded batch with its per-hospital outcomes.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, r, errHistoryDisabled, http.StatusNotFound)
		return
	}

	batchID := chi.URLParam(r, "batchID")
	rec, err := s.history.Get(r.Context(), batchID)
	if errors.Is(err, history.ErrNotFound) {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	if err != nil {
		respondError(w, r, errors.Join(errHistoryUnreadable, err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, rec)
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
