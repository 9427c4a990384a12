package core

// error_messages.go maps errors to messages a user can act on. Each message
// carries a code that can be quoted to support.
//
// # Format Errors (FMT001-FMT099)
//
//	FMT001 - The file content could not be parsed; message is the parser's own
//	FMT002 - The file extension is not supported
//
// # Read Errors (READ001-READ099)
//
//	READ001 - The upload could not be read; message is the reader's own
//	READ002 - The upload exceeds the configured size cap
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session not found or expired
//	SES002 - Operation needs a loaded dataset
//
// # Query Errors (QRY001-QRY099)
//
//	QRY001 - Empty prompt
//	QRY002 - Result replaced by a newer request
//
// # View Errors (VIEW001-VIEW099)
//
//	VIEW001 - Column does not exist in the dataset
//	VIEW002 - Page size below 1
//	VIEW003 - Sort direction is not asc or desc
//
// # Request Errors (REQ001-REQ099, UPL002, FILE004, RATE001)
//
//	UPL002  - All load slots busy
//	FILE004 - Multipart request had no file
//	REQ001  - Request cancelled
//	REQ002  - Request timed out
//	REQ003  - Malformed request body
//	RATE001 - Rate limited
//
// # Default Error (ERR000)
//
// Anything unmatched. Check the server logs for the underlying error.

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/explorer/internal/ingest"
	"github.com/JonMunkholm/explorer/internal/view"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// sentinelMessages are matched with errors.Is, in order.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrSessionNotFound, UserMessage{
		Message: "Session not found",
		Action:  "The session may have expired. Start a new session",
		Code:    "SES001",
	}},
	{ErrNotReady, UserMessage{
		Message: "No dataset is loaded",
		Action:  "Upload a file or load the sample data first",
		Code:    "SES002",
	}},
	{ErrEmptyPrompt, UserMessage{
		Message: "The question is empty",
		Action:  "Type a question about the data",
		Code:    "QRY001",
	}},
	{ErrSuperseded, UserMessage{
		Message: "A newer request replaced this one",
		Action:  "No action needed; the latest result is shown",
		Code:    "QRY002",
	}},
	{ErrUnknownColumn, UserMessage{
		Message: "That column does not exist in the dataset",
		Action:  "Pick one of the dataset's columns",
		Code:    "VIEW001",
	}},
	{ErrInvalidPageSize, UserMessage{
		Message: "Page size must be at least 1",
		Action:  "Choose a positive page size",
		Code:    "VIEW002",
	}},
	{view.ErrInvalidDirection, UserMessage{
		Message: "Sort direction must be asc or desc",
		Action:  "Use asc or desc",
		Code:    "VIEW003",
	}},
	{ErrTooManyLoads, UserMessage{
		Message: "Too many files are being processed",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "REQ002",
	}},
}

// errorPattern maps a lowercase substring of an error message to a message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors raised outside this package, typically by the
// transport layer. The first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a .csv or .json file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request body and try again",
			Code:    "REQ003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message.
//
// Ingestion errors keep their own text, since it already names the line or
// extension at fault. Known sentinels are matched next, then message
// patterns, then the ERR000 fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var fe *ingest.FormatError
	if errors.As(err, &fe) {
		if fe.Unsupported {
			return UserMessage{Message: fe.Error(), Action: "Upload a .csv or .json file", Code: "FMT002"}
		}
		return UserMessage{Message: fe.Error(), Action: "Fix the file and upload it again", Code: "FMT001"}
	}

	var re *ingest.ReadError
	if errors.As(err, &re) {
		if errors.Is(re, ingest.ErrFileTooLarge) {
			return UserMessage{Message: re.Error(), Action: "Split the file into smaller parts", Code: "READ002"}
		}
		return UserMessage{Message: re.Error(), Action: "Check the file and try again", Code: "READ001"}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs an underlying error with its user-facing message.
type UserError struct {
	Technical error       // Original error for logging
	User      UserMessage // Message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err with MapError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
