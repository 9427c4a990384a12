package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

// ParseStructured reads a JSON document.
//
// A top-level array supplies the rows directly. A top-level object supplies
// the first key (in document order) whose value is an array; an object with no
// array-valued key is itself the only row. Headers are the keys of the first
// row in document order. Later rows fill missing keys with Null and drop keys
// the first row did not have.
func ParseStructured(r io.Reader) (*dataset.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classify("json", 0, err)
	}

	if !gjson.ValidBytes(data) {
		return nil, &FormatError{Format: "json", Reason: "malformed document"}
	}

	rows, err := rowsOf(gjson.ParseBytes(data))
	if err != nil {
		return nil, err
	}

	header := keysOf(rows[0])
	if len(header) == 0 {
		return nil, &FormatError{Format: "json", Reason: "first row has no fields"}
	}

	b, err := dataset.NewBuilder(header)
	if err != nil {
		return nil, &FormatError{Format: "json", Reason: "bad field names", Err: err}
	}

	for _, row := range rows {
		values := make(map[string]dataset.Cell, len(header))
		row.ForEach(func(key, value gjson.Result) bool {
			values[key.String()] = jsonCell(value)
			return true
		})
		b.AppendMap(values)
	}

	return b.Build(), nil
}

// rowsOf locates the row sequence in a parsed document.
func rowsOf(root gjson.Result) ([]gjson.Result, error) {
	var rows []gjson.Result

	switch {
	case root.IsArray():
		rows = root.Array()
	case root.IsObject():
		found := false
		root.ForEach(func(_, value gjson.Result) bool {
			if value.IsArray() {
				rows = value.Array()
				found = true
				return false
			}
			return true
		})
		if !found {
			rows = []gjson.Result{root}
		}
	default:
		return nil, &FormatError{Format: "json", Reason: "top-level value must be an array or object"}
	}

	if len(rows) == 0 {
		return nil, &FormatError{Format: "json", Reason: "no rows"}
	}
	for i, row := range rows {
		if !row.IsObject() {
			return nil, &FormatError{Format: "json", Reason: fmt.Sprintf("row %d is not an object", i+1)}
		}
	}
	return rows, nil
}

// keysOf returns an object's keys in document order. A repeated key keeps its
// first position.
func keysOf(obj gjson.Result) []string {
	var keys []string
	seen := make(map[string]bool)
	obj.ForEach(func(key, _ gjson.Result) bool {
		k := key.String()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
		return true
	})
	return keys
}

// jsonCell converts a JSON value to a Cell. Strings are kept as text without
// coercion; arrays and objects become compact JSON text.
func jsonCell(v gjson.Result) dataset.Cell {
	switch v.Type {
	case gjson.Null:
		return dataset.Null()
	case gjson.False:
		return dataset.Bool(false)
	case gjson.True:
		return dataset.Bool(true)
	case gjson.Number:
		return dataset.Number(v.Num)
	case gjson.String:
		return dataset.Text(v.Str)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err != nil {
			return dataset.Text(v.Raw)
		}
		return dataset.Text(buf.String())
	}
}
