package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound means the stream is offline, the identifier is invalid or no
// extraction strategy produced a result.
var ErrNotFound = errors.New("stream not found")

// Error is returned when upstream could not be reached or answered with an
// unexpected status.
type Error struct {
	URL        string
	StatusCode int // 0 when the request did not complete
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound wraps ErrNotFound with a human readable reason.
func NotFound(format string, a ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, a...), ErrNotFound)
}

// StatusCode maps an error to the HTTP status presented to the caller.
func StatusCode(err error) int {
	var upstreamErr *Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
