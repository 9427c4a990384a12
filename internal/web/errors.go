package web

// errors.go provides unified error responses for the API.
//
// Every error is logged with its technical detail and the request ID, then
// returned as {"error","message","action","code"} using core.MapError. The
// status code is derived from the error itself.

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/explorer/internal/core"
	"github.com/JonMunkholm/explorer/internal/ingest"
	"github.com/JonMunkholm/explorer/internal/logging"
	"github.com/JonMunkholm/explorer/internal/view"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errInvalidRequest marks malformed request bodies and parameters.
var errInvalidRequest = errors.New("invalid request")

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	var fe *ingest.FormatError
	switch {
	case errors.As(err, &fe) && fe.Unsupported:
		return http.StatusUnsupportedMediaType
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case ingest.IsReadError(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotReady), errors.Is(err, core.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyPrompt),
		errors.Is(err, core.ErrUnknownColumn),
		errors.Is(err, core.ErrInvalidPageSize),
		errors.Is(err, view.ErrInvalidDirection),
		errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyLoads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes its user-facing form. Errors with no
// specific message are logged at error level whatever their status.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	ue := core.NewUserError(err)
	status := statusFor(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Technical.Error(),
		"code", ue.User.Code,
	}
	if status >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	writeErrorJSON(w, status, ue.User)
}

// writeError writes a plain message through the same mapping, for
// middleware that has no error value.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	msg := core.MapError(errors.New(message))
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"status", status,
		"reason", message,
		"code", msg.Code,
	)
	writeErrorJSON(w, status, msg)
}

func writeErrorJSON(w http.ResponseWriter, status int, msg core.UserMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
