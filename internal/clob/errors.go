package clob

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the CLOB API.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clob %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Rejection reports whether the error is a definitive refusal by the venue
// (bad order, insufficient balance, auth failure) as opposed to a transient
// condition worth retrying later. Rate limits and timeouts are transient.
func (e *APIError) Rejection() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

// IsRejection reports whether err is a venue rejection. Network errors and
// 5xx responses are not rejections; callers treat those as transient.
func IsRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Rejection()
}
