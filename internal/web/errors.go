package web

// errors.go maps failures to HTTP responses. Every error is logged with
// its technical detail and answered with the user-facing message from
// core.MapError, as an HTML fragment for the page script, JSON for API
// clients, or plain text otherwise.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/logging"
	"github.com/JonMunkholm/flatsheet/internal/web/templates"
)

// ErrorResponse is the JSON body of an error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

func errorResponse(msg core.UserMessage) *ErrorResponse {
	return &ErrorResponse{Error: msg.Message, Message: msg.Message, Action: msg.Action, Code: msg.Code}
}

// httpError pins the status of a request-level failure.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &httpError{status: http.StatusBadRequest, err: err}
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var he *httpError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &he):
		return he.status
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoFile), errors.Is(err, core.ErrPageOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrParseJSON),
		errors.Is(err, core.ErrParseDelimited),
		errors.Is(err, core.ErrUnsupportedStructure),
		errors.Is(err, core.ErrEmptyDataset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrExportLibraryMissing):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)
	msg := ue.User

	logger := logging.FromContext(r.Context())
	attrs := []any{"path", r.URL.Path, "method", r.Method, "status", status, "error", ue.Technical.Error(), "code", msg.Code}
	// Unmapped errors surface as the generic message and are logged loudly.
	if status >= 500 || !core.IsUserFacing(err) {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		writeJSON(w, status, errorResponse(msg))
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
	}
}

// isHTMX reports whether the page script asked for a fragment.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// isBrowser reports whether the request is a plain page navigation or form
// post, which is answered by redirecting back to the page.
func isBrowser(r *http.Request) bool {
	return !isHTMX(r) && strings.Contains(r.Header.Get("Accept"), "text/html")
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/") && !isBrowser(r)
}
