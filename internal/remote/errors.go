// ABOUTME: Remote failure classification.
// ABOUTME: Callers downgrade these to local fallbacks rather than surfacing them.
package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the remote could not be reached or timed out.
	ErrUnavailable = errors.New("remote unavailable")

	// ErrUnauthorized means the remote rejected the device's credentials.
	ErrUnauthorized = errors.New("remote rejected credentials")
)

// ServerError is a non-success response from the remote.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote error: status %d: %s", e.StatusCode, e.Message)
}
