package keypool

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolError(t *testing.T) {
	inner := errors.New("boom")
	err := NewPoolError(ErrorTypeExhausted, "no eligible credential", inner)

	assert.Equal(t, "PoolExhausted (no eligible credential): boom", err.Error())
	assert.ErrorIs(t, err, inner)

	bare := NewPoolError(ErrorTypeNotFound, "missing", nil)
	assert.Equal(t, "NotFound: missing", bare.Error())
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		matches func(error) bool
	}{
		{"duplicate", NewPoolError(ErrorTypeDuplicate, "", nil), IsDuplicate},
		{"not found", NewPoolError(ErrorTypeNotFound, "", nil), IsNotFound},
		{"exhausted", NewPoolError(ErrorTypeExhausted, "", nil), IsExhausted},
		{"dispatch failed", NewPoolError(ErrorTypeDispatchFailed, "", nil), IsDispatchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.matches(tt.err))
			assert.True(t, tt.matches(fmt.Errorf("wrapped: %w", tt.err)), "classification survives wrapping")
			assert.False(t, tt.matches(errors.New("other")))
		})
	}
}
