package executor

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedNode = errors.New("unsupported node")
	// ErrSuspendFailed marks a wait whose continuation could not be persisted.
	ErrSuspendFailed      = errors.New("failed to persist deferred task")
	ErrNoConnection       = errors.New("no messaging connection available")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidResponse    = errors.New("invalid JSON response")
)

// HTTPError is returned by http_request nodes when the endpoint answers outside 2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}
