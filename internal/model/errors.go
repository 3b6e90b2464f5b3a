// internal/model/errors.go
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks framing, mode or format problems found before any device I/O
	ErrConfig = errors.New("invalid configuration")

	// ErrDevice marks open/configure/flush/write/read primitive failures
	ErrDevice = errors.New("device error")

	// ErrTimeout marks a receive window that elapsed with no data
	ErrTimeout = errors.New("receive timeout")

	// ErrInvalidHex marks malformed hex text
	ErrInvalidHex = errors.New("invalid hex string")

	// ErrEmptyPayload marks an empty ASCII send string
	ErrEmptyPayload = errors.New("send string is empty")

	// ErrScriptValidation marks a malformed send script
	ErrScriptValidation = errors.New("invalid script")
)

// MismatchError reports a loopback echo that differs from what was sent
type MismatchError struct {
	Sent     []byte
	Received []byte
}

func (e *MismatchError) Error() string {
	if len(e.Sent) != len(e.Received) {
		return fmt.Sprintf("data length mismatch: sent %d bytes, received %d bytes",
			len(e.Sent), len(e.Received))
	}
	return fmt.Sprintf("data mismatch: %d bytes differ in content", len(e.Sent))
}

// IsValidationError reports whether err belongs to a category that is
// rejected before the device is touched.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrInvalidHex) ||
		errors.Is(err, ErrEmptyPayload) ||
		errors.Is(err, ErrScriptValidation)
}
