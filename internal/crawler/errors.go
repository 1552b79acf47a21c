package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingContent rejects a record that has neither a raw body nor extracted text.
var ErrMissingContent = errors.New("no content to upload: both raw content and extracted text are empty")

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Retryable reports whether the status may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
