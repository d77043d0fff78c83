package live

import (
	"errors"
	"fmt"
)

// User-facing messages surfaced through Channel.Err.
const (
	msgUnexpected = "An unexpected error occurred. Trying to reconnect..."
	msgForbidden  = "You are not allowed to view this resource. Trying to reconnect..."
	msgSystem     = "A system error occurred. Please try again later, and contact support if the problem continues."
	msgDeleted    = "The resource was deleted."
	msgDecode     = "Received a message that could not be read."
)

// ConnectionError is the error state of a channel. Terminal errors mean the
// channel has stopped retrying.
type ConnectionError struct {
	Code     int
	Terminal bool
	Message  string
	Err      error
}

func (e *ConnectionError) Error() string {
	return e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err is a ConnectionError after which no
// reconnect will be attempted.
func IsTerminal(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) && ce.Terminal
}

func unexpectedCloseError(code int, cause error) *ConnectionError {
	return &ConnectionError{
		Code:    code,
		Message: fmt.Sprintf("The connection closed unexpectedly (code %d). Trying to reconnect...", code),
		Err:     cause,
	}
}

func retriesExhaustedError(retries int, cause error) *ConnectionError {
	return &ConnectionError{
		Terminal: true,
		Message:  fmt.Sprintf("Could not reconnect after %d retries. Reload to try again.", retries),
		Err:      cause,
	}
}
