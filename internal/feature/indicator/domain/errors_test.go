package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidParameterError(t *testing.T) {
	t.Parallel()

	err := NewInvalidParameter(ReasonTooLarge, "period %d exceeds %d", 501, 500)

	assert.True(t, errors.Is(err, ErrInvalidParameter))
	assert.False(t, errors.Is(err, ErrInsufficientData))
	assert.Equal(t, ReasonTooLarge, ReasonOf(err))
	assert.Equal(t, ReasonTooLarge, ReasonOf(fmt.Errorf("wrapped: %w", err)))
	assert.Contains(t, err.Error(), "period 501 exceeds 500")
	assert.Equal(t, Reason(""), ReasonOf(errors.New("other")))
}

func TestInsufficientDataError(t *testing.T) {
	t.Parallel()

	var err error = &InsufficientDataError{Required: 20, Available: 3}

	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Equal(t, "insufficient data: need 20 points, got 3", err.Error())

	var ide *InsufficientDataError
	if assert.True(t, errors.As(fmt.Errorf("recompute: %w", err), &ide)) {
		assert.Equal(t, 20, ide.Required)
		assert.Equal(t, 3, ide.Available)
	}
}

func TestStoreUnavailableError(t *testing.T) {
	t.Parallel()

	err := &StoreUnavailableError{Op: "upsert", Err: context.DeadlineExceeded}

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "cause should be reachable through Unwrap")
	assert.Equal(t, "indicator store unavailable: upsert: context deadline exceeded", err.Error())

	noCause := &StoreUnavailableError{Op: "connect"}
	assert.Equal(t, "indicator store unavailable: connect", noCause.Error())
}
