// Package dataset defines the in-memory table produced by ingestion.
//
// A Dataset is immutable once built: it exposes ordered, unique headers and
// rows that hold exactly one Cell per header. Consumers (statistics, view
// engine, query interpreter) only read from it; a new upload replaces the
// Dataset wholesale.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoHeaders       = errors.New("no headers")
	ErrBlankHeader     = errors.New("blank header")
	ErrDuplicateHeader = errors.New("duplicate header")
	ErrTooManyCells    = errors.New("more cells than headers")
)

// Row is one record. Cells are positionally aligned with the owning
// Dataset's headers.
type Row struct {
	index map[string]int
	cells []Cell
}

// Get returns the cell for column. ok is false when the row has no such column.
func (r Row) Get(column string) (Cell, bool) {
	i, ok := r.index[column]
	if !ok {
		return Null(), false
	}
	return r.cells[i], true
}

// Cell returns the cell for column, or Null when the column is absent.
func (r Row) Cell(column string) Cell {
	c, _ := r.Get(column)
	return c
}

// Len returns the number of cells.
func (r Row) Len() int { return len(r.cells) }

// At returns the cell at header position i.
func (r Row) At(i int) Cell { return r.cells[i] }

// Values returns a copy of the row's cells in header order.
func (r Row) Values() []Cell {
	out := make([]Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

// Dataset is an immutable table of typed cells.
type Dataset struct {
	headers []string
	index   map[string]int
	rows    []Row
}

// New builds a Dataset from headers and positional rows.
func New(headers []string, rows ...[]Cell) (*Dataset, error) {
	b, err := NewBuilder(headers)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := b.Append(r); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// Headers returns a copy of the column names in order.
func (d *Dataset) Headers() []string {
	out := make([]string, len(d.headers))
	copy(out, d.headers)
	return out
}

// HasColumn reports whether name is a header.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int { return len(d.rows) }

// ColumnCount returns the number of headers.
func (d *Dataset) ColumnCount() int { return len(d.headers) }

// Row returns the i-th row.
func (d *Dataset) Row(i int) Row { return d.rows[i] }

// Rows returns the rows in ingestion order. The returned slice is a fresh
// copy; reordering it never affects the Dataset.
func (d *Dataset) Rows() []Row {
	out := make([]Row, len(d.rows))
	copy(out, d.rows)
	return out
}

// Column returns every cell of the named column in row order.
func (d *Dataset) Column(name string) ([]Cell, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	out := make([]Cell, len(d.rows))
	for r, row := range d.rows {
		out[r] = row.cells[i]
	}
	return out, true
}

// Builder accumulates rows for a Dataset.
type Builder struct {
	headers []string
	index   map[string]int
	rows    []Row
}

// NewBuilder validates headers and returns a Builder for them.
// Headers must be non-empty, non-blank and unique.
func NewBuilder(headers []string) (*Builder, error) {
	if len(headers) == 0 {
		return nil, ErrNoHeaders
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			return nil, fmt.Errorf("%w at column %d", ErrBlankHeader, i+1)
		}
		if _, dup := index[h]; dup {
			return nil, fmt.Errorf("%w %q", ErrDuplicateHeader, h)
		}
		index[h] = i
	}

	hs := make([]string, len(headers))
	copy(hs, headers)

	return &Builder{headers: hs, index: index}, nil
}

// Append adds a positional row. Missing trailing cells are Null.
func (b *Builder) Append(cells []Cell) error {
	if len(cells) > len(b.headers) {
		return fmt.Errorf("%w: got %d, want at most %d", ErrTooManyCells, len(cells), len(b.headers))
	}
	row := make([]Cell, len(b.headers))
	copy(row, cells)
	b.rows = append(b.rows, Row{index: b.index, cells: row})
	return nil
}

// AppendMap adds a row keyed by header. Keys that are not headers are
// ignored; headers absent from values are Null.
func (b *Builder) AppendMap(values map[string]Cell) {
	row := make([]Cell, len(b.headers))
	for i, h := range b.headers {
		if c, ok := values[h]; ok {
			row[i] = c
		}
	}
	b.rows = append(b.rows, Row{index: b.index, cells: row})
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int { return len(b.rows) }

// Build returns the finished Dataset. The Builder must not be used afterwards.
func (b *Builder) Build() *Dataset {
	ds := &Dataset{headers: b.headers, index: b.index, rows: b.rows}
	b.rows = nil
	return ds
}
