package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		kind Kind
	}{
		{NewNotFound("Issue not found", "missing"), NotFound},
		{NewInvalidInput("Invalid updates", "bad field"), InvalidInput},
		{NewPermissionDenied("Permission denied", "no"), PermissionDenied},
		{NewConflict("Duplicate user", "exists"), Conflict},
		{NewInternal("Update failed", "boom", errors.New("db")), Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.err.Kind)
		assert.Equal(t, tt.kind, KindOf(tt.err))
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal("Update failed", "could not persist", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(fmt.Errorf("handler: %w", err), cause))
}

func TestAsErrorThroughWrapping(t *testing.T) {
	inner := NewNotFound("Sprint not found", "gone")
	wrapped := fmt.Errorf("complete sprint: %w", inner)

	ae := AsError(wrapped)
	require.NotNil(t, ae)
	assert.Equal(t, NotFound, ae.Kind)
	assert.Equal(t, "Sprint not found", ae.Type)

	assert.Nil(t, AsError(errors.New("plain")))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestWithDetails(t *testing.T) {
	err := NewInvalidInput("Invalid updates", "bad").
		WithDetails(map[string]interface{}{"disallowed_fields": []string{"id"}})
	require.NotNil(t, err.Details)
}
