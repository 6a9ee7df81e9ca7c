package core

import (
	"errors"
	"fmt"
)

// ErrDisallowedHost is returned before any network call when the requested
// URL does not match the origin allow-list.
var ErrDisallowedHost = errors.New("host is not on the allow-list")

// ErrInvalidURL is returned when the requested URL cannot be parsed or
// lacks an http/https scheme.
var ErrInvalidURL = errors.New("invalid URL")

// UpstreamError reports a failed top-level fetch: either a non-2xx status
// or a network failure. Status is 0 when the request never completed.
type UpstreamError struct {
	URL    string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream returned %d for %s", e.Status, e.URL)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
