package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackline/trackline/pkg/apperr"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-07-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("2026-07-01T09:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())

	_, err = parseDate("July 1st")
	assert.Error(t, err)
}

func TestActiveSprintConflictIsValidationError(t *testing.T) {
	ae := apperr.AsError(errActiveSprintExists)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.InvalidInput, ae.Kind)
	assert.Equal(t, "Validation Error", ae.Type)
}

func TestSprintNotFoundKind(t *testing.T) {
	assert.Equal(t, apperr.NotFound, apperr.KindOf(errSprintNotFound))
}
