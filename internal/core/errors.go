package core

import "errors"

var (
	// ErrNotReady is returned by operations that need a loaded dataset.
	ErrNotReady = errors.New("no dataset loaded")

	// ErrEmptyPrompt is returned by Query for a blank prompt.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrSuperseded is returned when a newer load, query or reset replaced
	// the operation's result before it could be applied.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrUnknownColumn is returned when a column name is not a header.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrInvalidPageSize is returned for a page size below 1.
	ErrInvalidPageSize = errors.New("invalid page size")

	// ErrSessionNotFound is returned for missing or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
)
