package web

// errors.go maps service errors onto HTTP responses.
//
// Every error response has the same JSON shape: a user-facing message from
// core.MapError plus its support code. The technical error is logged with
// the request id and never sent to the client.
//
// Access policy: a resource owned by someone else answers exactly like a
// missing one (404, same body), so callers cannot probe for foreign ids.

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/assurelog/internal/core"
	"github.com/JonMunkholm/assurelog/internal/logging"
)

var (
	errBadRequest  = errors.New("invalid request body")
	errNoFile      = errors.New("no file provided")
	errRateLimited = errors.New("rate limit exceeded")
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	MissingColumns []string `json:"missing_columns,omitempty"`
	FoundColumns   []string `json:"found_columns,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var missing *core.MissingColumnsError
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrForbidden):
		return http.StatusNotFound
	case errors.As(err, &missing),
		errors.Is(err, core.ErrMalformedFile),
		errors.Is(err, core.ErrUnsupportedFile),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrEvidenceType),
		errors.Is(err, core.ErrTitleRequired),
		errors.Is(err, core.ErrInvalidStatus),
		errors.Is(err, core.ErrFieldRequired),
		errors.Is(err, errBadRequest),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyOperations):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user-facing response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	// Foreign and missing resources share one response.
	mapped := err
	if status == http.StatusNotFound {
		mapped = core.ErrNotFound
	}
	msg := core.MapError(mapped)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	}
	if status >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	body := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var missing *core.MissingColumnsError
	if errors.As(err, &missing) {
		body.MissingColumns = missing.Missing
		body.FoundColumns = missing.Found
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, r, status, body)
}
