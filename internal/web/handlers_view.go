package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/explorer/internal/core"
	"github.com/JonMunkholm/explorer/internal/view"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// decodeJSON reads a JSON body into v. Failures wrap errInvalidRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

// respondView writes v, or the error if op failed.
func respondView(w http.ResponseWriter, r *http.Request, v core.View, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

type queryRequest struct {
	Prompt string `json:"prompt"`
}

// handleQuery answers a question about the loaded dataset.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	v, err := sessionFrom(r).Query(withClient(r), req.Prompt)
	respondView(w, r, v, err)
}

// handleUpdateView applies a partial set of view parameters in one step.
func (s *Server) handleUpdateView(w http.ResponseWriter, r *http.Request) {
	var req core.ViewUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	v, err := sessionFrom(r).SetViewParameters(req)
	respondView(w, r, v, err)
}

type searchRequest struct {
	Term string `json:"term"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	v, err := sessionFrom(r).SetSearchTerm(req.Term)
	respondView(w, r, v, err)
}

type columnRequest struct {
	Column string `json:"column"`
}

type sortRequest struct {
	Column    string `json:"column"`
	Direction string `json:"direction,omitempty"`
}

// handleSort toggles the sort on a column, or sorts it in the requested
// direction when one is given.
func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	sess := sessionFrom(r)
	if req.Direction == "" {
		v, err := sess.ToggleSort(req.Column)
		respondView(w, r, v, err)
		return
	}

	dir, err := view.ParseDirection(req.Direction)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if req.Column == "" {
		respondError(w, r, fmt.Errorf("%w: column is required", errInvalidRequest))
		return
	}
	v, err := sess.SortBy(req.Column, dir)
	respondView(w, r, v, err)
}

func (s *Server) handleToggleColumn(w http.ResponseWriter, r *http.Request) {
	var req columnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	v, err := sessionFrom(r).ToggleColumnVisibility(req.Column)
	respondView(w, r, v, err)
}

type pageRequest struct {
	Page *int `json:"page"`
}

func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Page == nil {
		respondError(w, r, fmt.Errorf("%w: page is required", errInvalidRequest))
		return
	}
	v, err := sessionFrom(r).SetPage(*req.Page)
	respondView(w, r, v, err)
}

type pageSizeRequest struct {
	PageSize *int `json:"pageSize"`
}

func (s *Server) handleSetPageSize(w http.ResponseWriter, r *http.Request) {
	var req pageSizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.PageSize == nil {
		respondError(w, r, fmt.Errorf("%w: pageSize is required", errInvalidRequest))
		return
	}
	v, err := sessionFrom(r).SetPageSize(*req.PageSize)
	respondView(w, r, v, err)
}
