package arbor

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is an error carrying an explicit HTTP status code and a
// client-facing message. Handlers, hooks, and the dispatcher itself all
// funnel through the same error path; the status is derived from the
// error's own declaration when present.
type HTTPError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *HTTPError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status code for this error.
func (e *HTTPError) StatusCode() int { return e.Code }

// errNotFound is the synthetic error for paths no route matches. It is a
// routine outcome, excluded from operational error logging.
func errNotFound() *HTTPError {
	return &HTTPError{Code: http.StatusNotFound, Message: "not found"}
}

// errMethodNotAllowed reports a matched route whose target does not
// support the request method.
func errMethodNotAllowed(method string) *HTTPError {
	return &HTTPError{Code: http.StatusMethodNotAllowed, Message: "method not allowed: " + method}
}

// Validation creates a 400-level error for malformed request input.
func Validation(format string, args ...any) *HTTPError {
	return &HTTPError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// HandlerLoadError reports a route target whose source failed to load or
// compile. The route stays broken, without re-attempting the load, until
// the next invalidation.
type HandlerLoadError struct {
	Source string
	Err    error
}

func (e *HandlerLoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Source, e.Err)
}

func (e *HandlerLoadError) Unwrap() error { return e.Err }

// StatusCode returns 500; load failures are never the client's fault.
func (e *HandlerLoadError) StatusCode() int { return http.StatusInternalServerError }

// statusOf derives the HTTP status for an error: the error's own declared
// status when it exposes one, a generic internal error otherwise.
func statusOf(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// messageOf derives the client-facing message for an error. Errors that
// declared a status also own their message; everything else gets the
// generic status text so internals never leak to clients.
func messageOf(err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Message
	}
	var le *HandlerLoadError
	if errors.As(err, &le) {
		// Load failures carry source paths; never show those to clients.
		return http.StatusText(http.StatusInternalServerError)
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return err.Error()
	}
	return http.StatusText(http.StatusInternalServerError)
}
