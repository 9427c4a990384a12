package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

// numericRegex matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// coerceField converts one delimited-text field into a Cell.
//
// Order: empty -> Null, numeric -> Number, true/false -> Bool, else Text.
// Surrounding whitespace is tolerated for numbers and booleans; text keeps the
// field exactly as written.
func coerceField(field string) dataset.Cell {
	if field == "" {
		return dataset.Null()
	}

	s := strings.TrimSpace(field)
	if numericRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return dataset.Number(f)
		}
	}

	switch {
	case strings.EqualFold(s, "true"):
		return dataset.Bool(true)
	case strings.EqualFold(s, "false"):
		return dataset.Bool(false)
	}

	return dataset.Text(field)
}

// ParseNumber parses s as a number using the same rules as ingestion.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
