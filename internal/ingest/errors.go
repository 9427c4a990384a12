package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrFileTooLarge is wrapped in a ReadError when a source exceeds the
// configured size cap.
var ErrFileTooLarge = errors.New("file too large")

// FormatError reports input that cannot become a Dataset: an unsupported
// extension, malformed delimited text, malformed structured data, or a header
// set that is empty or cannot be determined.
//
// The message is meant to be shown to the user verbatim.
type FormatError struct {
	Format      string // "csv", "json"; empty when the extension was rejected
	Ext         string // rejected extension, set when Unsupported
	Unsupported bool
	Line        int    // 1-based source line for delimited text, 0 if unknown
	Reason      string // human-readable cause
	Err         error  // underlying parser error, if any
}

func (e *FormatError) Error() string {
	if e.Unsupported {
		ext := e.Ext
		if ext == "" {
			ext = "(none)"
		}
		return fmt.Sprintf("unsupported file extension %s: upload a %s file",
			ext, strings.Join(Extensions(), " or "))
	}

	var b strings.Builder
	b.WriteString("invalid ")
	b.WriteString(e.Format)
	b.WriteString(" file")
	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// ReadError reports that the underlying byte source could not be read.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return "read file: " + e.Err.Error() }

func (e *ReadError) Unwrap() error { return e.Err }

// IsFormatError reports whether err is or wraps a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsReadError reports whether err is or wraps a ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}

func unsupportedExtension(ext string) *FormatError {
	return &FormatError{Ext: ext, Unsupported: true}
}

// classify turns a parser failure into the error surfaced to callers.
// Read failures and cancellation pass through untouched; anything else is a
// FormatError for the given format.
func classify(format string, line int, err error) error {
	var re *ReadError
	if errors.As(err, &re) {
		return re
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &FormatError{Format: format, Line: line, Err: err}
}
