package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

// ParseDelimited reads comma-separated text. The first record supplies the
// headers; blank lines are skipped; every field is coerced with coerceField.
// Records shorter than the header row are padded with Null.
func ParseDelimited(r io.Reader) (*dataset.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	b, err := dataset.NewBuilder(header)
	if err != nil {
		return nil, &FormatError{Format: "csv", Line: 1, Reason: "bad header row", Err: err}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, delimitedFailure(err)
		}
		if isBlankLine(record) {
			continue
		}

		line, _ := reader.FieldPos(0)
		if len(record) > len(header) {
			return nil, &FormatError{
				Format: "csv",
				Line:   line,
				Reason: fmt.Sprintf("%d fields, header has %d", len(record), len(header)),
			}
		}

		cells := make([]dataset.Cell, len(record))
		for i, field := range record {
			cells[i] = coerceField(field)
		}
		if err := b.Append(cells); err != nil {
			return nil, &FormatError{Format: "csv", Line: line, Err: err}
		}
	}

	return b.Build(), nil
}

// readHeader returns the first non-blank record, trimmed.
func readHeader(reader *csv.Reader) ([]string, error) {
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil, &FormatError{Format: "csv", Reason: "no header row"}
		}
		if err != nil {
			return nil, delimitedFailure(err)
		}
		if isBlankLine(record) {
			continue
		}

		header := make([]string, len(record))
		for i, h := range record {
			header[i] = strings.TrimSpace(h)
		}
		return header, nil
	}
}

func delimitedFailure(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &FormatError{Format: "csv", Line: pe.Line, Err: pe.Err}
	}
	return classify("csv", 0, err)
}

// isBlankLine reports whether a record came from a line holding only
// whitespace. encoding/csv already drops lines that are completely empty.
func isBlankLine(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}
