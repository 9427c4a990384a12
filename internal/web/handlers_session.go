package web

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/explorer/internal/core"
	"github.com/JonMunkholm/explorer/internal/logging"
	"github.com/JonMunkholm/explorer/internal/query"
)

// handleHealth reports liveness plus session and load counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
		"loads":    s.service.Limiter().Status(),
	})
}

// handlePrompts lists suggested questions for the query box.
func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]string{"prompts": query.SuggestedPrompts()})
}

// handleCreateSession starts an empty session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.service.CreateSession(withClient(r))
	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, r, http.StatusCreated, sess.View())
}

// handleView returns the session's current view.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, sessionFrom(r).View())
}

// handleDeleteSession drops the session and closes its progress streams.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.service.DeleteSession(sessionFrom(r).ID())
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory returns the query history, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]core.QueryResult{"history": sessionFrom(r).History()})
}

// handleReset discards the dataset, view parameters and history.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	v := sess.Reset()
	logging.WithFields(r.Context(), "session_id", sess.ID()).Info("session reset")
	writeJSON(w, r, http.StatusOK, v)
}

// handleExport streams the filtered and sorted rows of the visible columns
// as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	v := sess.View()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportName(v.FileName)+`"`)

	if err := sess.ExportCSV(w); err != nil {
		if errors.Is(err, core.ErrNotReady) {
			// Nothing has been written yet.
			w.Header().Del("Content-Disposition")
			respondError(w, r, err)
			return
		}
		logging.FromContext(r.Context()).Error("export failed", "session_id", sess.ID(), "error", err)
	}
}

// exportName derives a download name from the loaded file's name.
func exportName(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if strings.Trim(base, "_") == "" {
		base = "dataset"
	}
	return base + "-export.csv"
}
