// ABOUTME: Transport error type and sentinel errors for the connection manager
// ABOUTME: Transport errors never escape the manager except through Send

package conn

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by Send when no transport is open
	ErrNotConnected = errors.New("not connected")

	// ErrStopped is returned when the manager's event loop has exited
	ErrStopped = errors.New("connection manager stopped")

	// ErrUnsupportedScheme is returned by Endpoint for non-http(s)/ws(s) origins
	ErrUnsupportedScheme = errors.New("unsupported origin scheme")
)

// TransportError records a connect, read, write or close failure.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
