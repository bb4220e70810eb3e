package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("apply: %w", ErrDuplicateApplication)

	assert.ErrorIs(t, wrapped, ErrDuplicateApplication)
	assert.ErrorIs(t, wrapped, ErrDuplicate)
	assert.NotErrorIs(t, wrapped, ErrDuplicateRoute)
	assert.NotErrorIs(t, wrapped, ErrInvalidState)
	assert.False(t, errors.Is(wrapped, errors.New("duplicate")))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("name", "required"), KindValidation},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("route")), KindNotFound},
		{"capacity", ErrCapacityExceeded, KindCapacity},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessageIncludesField(t *testing.T) {
	err := Validation("fee", "must not be negative")
	assert.Equal(t, "fee: must not be negative", err.Error())
	assert.Equal(t, "fee", FieldOf(fmt.Errorf("x: %w", err)))
}
