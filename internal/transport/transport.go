// Package transport holds the HTTP plumbing shared by every remote call:
// one client with a uniform timeout and a status validator that keeps the
// response body of rejected requests.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
)

// DefaultTimeout applies when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 2048

// NewClient returns the client used for every request of a run.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Request starts a builder for rawURL bound to client with the given headers.
// Non-2xx responses fail with *StatusError.
func Request(client *http.Client, rawURL string, headers http.Header) *requests.Builder {
	rb := requests.
		URL(rawURL).
		Client(client).
		AddValidator(Validate)
	for key, values := range headers {
		rb = rb.Header(key, values...)
	}
	return rb
}

// StatusError is returned for any response outside the 2xx range.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Validate accepts 2xx responses and turns everything else into a *StatusError.
func Validate(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return &StatusError{
		Code: res.StatusCode,
		Body: strings.TrimSpace(string(body)),
	}
}

// AsStatus extracts the status error from err, if the failure was a rejected response.
func AsStatus(err error) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
