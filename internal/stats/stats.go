// Package stats infers column types and computes descriptive statistics for
// a dataset.
package stats

import (
	"encoding/json"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

// Type is the inferred type of a column.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeMixed   Type = "mixed"
)

// ColumnStats summarises one column. Min, Max and Mean are set only when
// Type is TypeNumber.
type ColumnStats struct {
	Name        string   `json:"name"`
	Type        Type     `json:"type"`
	NullCount   int      `json:"nullCount"`
	UniqueCount int      `json:"uniqueCount"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Mean        *float64 `json:"mean,omitempty"`
}

func typeOf(k dataset.Kind) Type {
	switch k {
	case dataset.KindNumber:
		return TypeNumber
	case dataset.KindBool:
		return TypeBoolean
	default:
		return TypeString
	}
}

// Compute summarises column header of ds. A header not present in ds yields
// the zero-row result.
//
// Null and empty-text cells count as null. The type is the single kind of the
// remaining values, TypeMixed when there are several, or TypeString when there
// are none.
func Compute(ds *dataset.Dataset, header string) ColumnStats {
	cs := ColumnStats{Name: header, Type: TypeString}

	cells, ok := ds.Column(header)
	if !ok {
		return cs
	}

	kinds := make(map[dataset.Kind]struct{}, 2)
	unique := make(map[any]struct{})
	var nums []float64

	for _, c := range cells {
		if c.IsBlank() {
			cs.NullCount++
			continue
		}
		kinds[c.Kind()] = struct{}{}
		unique[c.Key()] = struct{}{}
		if f, ok := c.Number(); ok {
			nums = append(nums, f)
		}
	}
	cs.UniqueCount = len(unique)

	switch len(kinds) {
	case 0:
		return cs
	case 1:
		for k := range kinds {
			cs.Type = typeOf(k)
		}
	default:
		cs.Type = TypeMixed
		return cs
	}

	if cs.Type == TypeNumber {
		lo, hi, sum := nums[0], nums[0], 0.0
		for _, f := range nums {
			lo = min(lo, f)
			hi = max(hi, f)
			sum += f
		}
		mean := sum / float64(len(nums))
		cs.Min, cs.Max, cs.Mean = &lo, &hi, &mean
	}
	return cs
}

// Set holds the statistics of every column, in header order.
type Set struct {
	names  []string
	byName map[string]ColumnStats
}

// ComputeAll summarises every column of ds. A nil ds yields an empty Set.
func ComputeAll(ds *dataset.Dataset) Set {
	if ds == nil {
		return Set{}
	}

	headers := ds.Headers()
	computed := make([]ColumnStats, len(headers))

	// Columns are independent; each goroutine writes only its own slot.
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, h := range headers {
		g.Go(func() error {
			computed[i] = Compute(ds, h)
			return nil
		})
	}
	_ = g.Wait()

	s := Set{names: headers, byName: make(map[string]ColumnStats, len(headers))}
	for i, h := range headers {
		s.byName[h] = computed[i]
	}
	return s
}

// Get returns the statistics for a column.
func (s Set) Get(name string) (ColumnStats, bool) {
	cs, ok := s.byName[name]
	return cs, ok
}

// Names returns the column names in header order.
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// All returns every ColumnStats in header order.
func (s Set) All() []ColumnStats {
	out := make([]ColumnStats, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.byName[n])
	}
	return out
}

// Len returns the number of columns.
func (s Set) Len() int { return len(s.names) }

// MarshalJSON encodes the set as an array in header order.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.All())
}
