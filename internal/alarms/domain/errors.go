package alarms

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing alarm record.
	ErrNotFound = errors.New("alarm: not found")
	// ErrStoreUnavailable indicates the alarm table could not be reached.
	ErrStoreUnavailable = errors.New("alarm: store unavailable")
	// ErrValidation indicates malformed input rejected before store access.
	ErrValidation = errors.New("alarm: validation failed")
	// ErrInvalidTransition indicates the alarm already left the open state.
	ErrInvalidTransition = errors.New("alarm: invalid transition")
)

// ValidationError describes the rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("alarm: invalid %s: %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps a driver or connectivity failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("alarm store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Unavailable wraps err as a StoreError, keeping nil as nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
