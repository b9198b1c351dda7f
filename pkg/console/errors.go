package console

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect matches any *ConnectError.
	ErrConnect = errors.New("failed to connect to console")

	// ErrSetLogger matches any *SetLoggerError.
	ErrSetLogger = errors.New("a logger is already installed")

	// ErrSendFailure wraps a record that could not be queued because
	// the delivery loop has stopped.
	ErrSendFailure = errors.New("failed to send record")
)

// ConnectError reports that the console at Address could not be reached
// or did not accept the hello.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("console: connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() []error {
	return []error{ErrConnect, e.Err}
}

// SetLoggerError is returned when a forwarder is already installed.
type SetLoggerError struct{}

func (e *SetLoggerError) Error() string {
	return "console: " + ErrSetLogger.Error()
}

func (e *SetLoggerError) Is(target error) bool {
	return target == ErrSetLogger
}
