package core

import (
	"time"

	"github.com/JonMunkholm/explorer/internal/dataset"
	"github.com/JonMunkholm/explorer/internal/query"
	"github.com/JonMunkholm/explorer/internal/stats"
	"github.com/JonMunkholm/explorer/internal/view"
)

// State is a session's lifecycle stage.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// Progress is broadcast to subscribers while a dataset loads.
type Progress struct {
	SessionID string `json:"sessionId"`
	State     State  `json:"state"`
	FileName  string `json:"fileName,omitempty"`
	Percent   int    `json:"percent"`
	Error     string `json:"error,omitempty"`
}

// Done reports whether no load is in flight.
func (p Progress) Done() bool { return p.State != StateLoading }

// ViewParams selects how the dataset is presented.
type ViewParams struct {
	SearchTerm     string         `json:"searchTerm"`
	SortColumn     string         `json:"sortColumn,omitempty"`
	SortDirection  view.Direction `json:"sortDirection"`
	VisibleColumns []string       `json:"visibleColumns"`
	CurrentPage    int            `json:"currentPage"`
	PageSize       int            `json:"pageSize"`
}

// ViewUpdate is a partial ViewParams. Nil fields are left unchanged.
// SortDirection, when set, fixes the order instead of toggling it.
type ViewUpdate struct {
	SearchTerm     *string         `json:"searchTerm,omitempty"`
	SortColumn     *string         `json:"sortColumn,omitempty"`
	SortDirection  *view.Direction `json:"sortDirection,omitempty"`
	VisibleColumns []string        `json:"visibleColumns,omitempty"`
	CurrentPage    *int            `json:"currentPage,omitempty"`
	PageSize       *int            `json:"pageSize,omitempty"`
}

// QueryResult is one answered question. Results are never modified after
// they enter the history.
type QueryResult struct {
	ID           string       `json:"id"`
	Query        string       `json:"query"`
	Response     string       `json:"response"`
	Timestamp    time.Time    `json:"timestamp"`
	RowsAffected *int         `json:"rowsAffected,omitempty"`
	Intent       query.Intent `json:"intent,omitempty"`
}

// View is everything a client needs to render a session.
type View struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	Progress  int       `json:"progress"`
	FileName  string    `json:"fileName,omitempty"`
	Querying  bool      `json:"querying"`

	Headers []string         `json:"headers"`
	Columns []string         `json:"columns"`
	Rows    [][]dataset.Cell `json:"rows"`

	RowCount      int `json:"rowCount"`
	ColumnCount   int `json:"columnCount"`
	FilteredCount int `json:"filteredCount"`
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalPages    int `json:"totalPages"`

	Stats   stats.Set     `json:"stats"`
	History []QueryResult `json:"history"`
	Params  ViewParams    `json:"params"`
}
