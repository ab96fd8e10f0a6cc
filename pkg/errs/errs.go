// Package errs defines the error taxonomy shared by the analytics core and
// the service layer.
package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrConfiguration marks invalid caller input: an unknown rebalance
	// policy, bad window sizes, mismatched weights.
	ErrConfiguration = errors.New("configuration error")

	// ErrData marks empty, insufficient or malformed price history.
	ErrData = errors.New("data error")

	// ErrProvider marks an upstream fetch or search failure.
	ErrProvider = errors.New("provider error")
)

// Error carries the kind, the failing operation and an optional cause.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

// Is reports whether target is the kind of this error
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Config builds an ErrConfiguration error
func Config(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrConfiguration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Data builds an ErrData error
func Data(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrData, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Provider builds an ErrProvider error wrapping cause (which may be nil)
func Provider(op string, cause error, format string, args ...interface{}) error {
	return &Error{Kind: ErrProvider, Op: op, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Kind returns the taxonomy sentinel err belongs to, or nil
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConfiguration):
		return ErrConfiguration
	case errors.Is(err, ErrData):
		return ErrData
	case errors.Is(err, ErrProvider):
		return ErrProvider
	default:
		return nil
	}
}
