// Package view derives what a user sees from a dataset: rows filtered by a
// search term, sorted by one column, and cut into pages.
//
// Every function is pure. Input slices are never modified and results are
// fresh slices, so callers can hand them out without copying.
package view

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

// DefaultPageSize is used when a page size is missing or not positive.
const DefaultPageSize = 25

// ErrInvalidDirection is returned by ParseDirection.
var ErrInvalidDirection = errors.New("invalid sort direction")

// Direction is a sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection parses "asc" or "desc" (case-insensitive). The empty string
// is Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return Asc, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// Filter keeps rows where any cell's rendering contains term, ignoring case.
// An empty term keeps every row.
func Filter(rows []dataset.Row, term string) []dataset.Row {
	out := make([]dataset.Row, 0, len(rows))
	if term == "" {
		return append(out, rows...)
	}

	fold := cases.Fold()
	needle := fold.String(term)

	for _, row := range rows {
		for i := 0; i < row.Len(); i++ {
			if strings.Contains(fold.String(row.At(i).String()), needle) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

type sortKey struct {
	null bool
	num  float64
	text string
}

// Sort orders rows by column. The sort is stable and null cells (or rows
// without the column) always come after every non-null value, in either
// direction.
//
// When every non-null value is a number the column compares numerically;
// otherwise values compare by their case-folded rendering.
func Sort(rows []dataset.Row, column string, dir Direction) []dataset.Row {
	type keyed struct {
		row dataset.Row
		key sortKey
	}

	items := make([]keyed, len(rows))
	numeric := true
	fold := cases.Fold()

	for i, row := range rows {
		c := row.Cell(column)
		k := sortKey{null: c.IsNull()}
		if !k.null {
			if f, ok := c.Number(); ok {
				k.num = f
			} else {
				numeric = false
			}
			k.text = fold.String(c.String())
		}
		items[i] = keyed{row: row, key: k}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.key.null && b.key.null:
			return 0
		case a.key.null:
			return 1
		case b.key.null:
			return -1
		}

		var c int
		if numeric {
			c = cmp.Compare(a.key.num, b.key.num)
		} else {
			c = strings.Compare(a.key.text, b.key.text)
		}
		if dir == Desc {
			c = -c
		}
		return c
	})

	out := make([]dataset.Row, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out
}

// Page is one page of rows plus pagination metadata.
type Page struct {
	Rows       []dataset.Row
	Page       int
	PageSize   int
	TotalPages int
	TotalRows  int
	Start      int // index of the first row on the page
	End        int // index one past the last row on the page
}

// TotalPages returns ceil(n/size), never less than 1.
func TotalPages(n, size int) int {
	if size < 1 {
		size = DefaultPageSize
	}
	if n <= 0 {
		return 1
	}
	pages := n / size
	if n%size != 0 {
		pages++
	}
	return pages
}

// Paginate returns rows [(page-1)*size, page*size), clipped to the rows
// available. A page below 1 is treated as 1 and a size below 1 as
// DefaultPageSize.
func Paginate(rows []dataset.Row, page, size int) Page {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}

	n := len(rows)
	start := n
	if page-1 < TotalPages(n, size) {
		start = min((page-1)*size, n)
	}
	end := start + min(size, n-start)

	out := make([]dataset.Row, end-start)
	copy(out, rows[start:end])

	return Page{
		Rows:       out,
		Page:       page,
		PageSize:   size,
		TotalPages: TotalPages(n, size),
		TotalRows:  n,
		Start:      start,
		End:        end,
	}
}

// Params selects a view. An empty SortColumn leaves rows in dataset order.
type Params struct {
	SearchTerm    string
	SortColumn    string
	SortDirection Direction
	Page          int
	PageSize      int
}

// Result is a derived view.
type Result struct {
	// Rows holds every filtered and sorted row, across all pages.
	Rows []dataset.Row
	Page Page
}

// Apply filters, sorts and paginates rows, in that order.
func Apply(rows []dataset.Row, p Params) Result {
	out := Filter(rows, p.SearchTerm)
	if p.SortColumn != "" {
		out = Sort(out, p.SortColumn, p.SortDirection)
	}
	return Result{Rows: out, Page: Paginate(out, p.Page, p.PageSize)}
}
