package virag

import (
	"errors"
	"fmt"
)

// ErrUpstreamTimeout is returned when the service does not answer within the client timeout.
var ErrUpstreamTimeout = errors.New("virag: upstream timeout")

// UpstreamError carries a non-2xx response for diagnostics.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("virag: upstream returned %d: %s", e.Status, e.Body)
}

// NetworkError wraps failures to send the request or read the response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("virag: service unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
