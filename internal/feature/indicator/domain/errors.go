// Package domain defines domain-level errors for the indicator feature.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is so callers
// can branch on the category without caring about the details.
var (
	// ErrInvalidParameter indicates an indicator configuration failed validation.
	// It is always reported before any data access and is never retried.
	ErrInvalidParameter = errors.New("invalid indicator parameter")

	// ErrInsufficientData indicates fewer input points than the window size.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrStoreUnavailable indicates the persistence backend could not serve the
	// operation. The whole call is safe to retry.
	ErrStoreUnavailable = errors.New("indicator store unavailable")

	// ErrParameterMismatch is an internal contract violation, e.g. a window of
	// the wrong length handed to the single-value calculator.
	ErrParameterMismatch = errors.New("parameter mismatch")

	// ErrRecordNotFound is returned when no record exists for a natural key.
	ErrRecordNotFound = errors.New("indicator record not found")
)

// Reason classifies why a parameter was rejected.
type Reason string

const (
	ReasonNotPositive Reason = "NotPositive"
	ReasonNotInteger  Reason = "NotInteger"
	ReasonTooLarge    Reason = "TooLarge"
	ReasonMalformed   Reason = "Malformed"
	ReasonUnknownKind Reason = "UnknownKind"
)

// InvalidParameterError carries the validation reason.
type InvalidParameterError struct {
	Reason Reason
	Detail string
}

func (e *InvalidParameterError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidParameter, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidParameter, e.Reason, e.Detail)
}

func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// NewInvalidParameter builds an InvalidParameterError.
func NewInvalidParameter(reason Reason, format string, args ...any) *InvalidParameterError {
	return &InvalidParameterError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// InsufficientDataError reports how many points were required and how many were available.
type InsufficientDataError struct {
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need %d points, got %d", ErrInsufficientData, e.Required, e.Available)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// StoreUnavailableError wraps the backend failure of a store operation.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrStoreUnavailable, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable, e.Op, e.Err)
}

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// ReasonOf returns the validation reason of err, or "" when err is not an InvalidParameterError.
func ReasonOf(err error) Reason {
	var ipe *InvalidParameterError
	if errors.As(err, &ipe) {
		return ipe.Reason
	}
	return ""
}
