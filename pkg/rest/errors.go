package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches a StatusError carrying 404 via errors.Is.
var ErrNotFound = errors.New("resource not found")

// StatusError reports a non-2xx response from a backend service.
type StatusError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s %s: http %d", e.Service, e.Method, e.Path, e.StatusCode)
}

// Is makes errors.Is(err, ErrNotFound) hold for 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
