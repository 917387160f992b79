package render

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackline/trackline/pkg/apperr"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestOKEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)

	OK(rec, req, "Issue retrieved", "Issue details retrieved successfully",
		map[string]interface{}{"issue_id": "abc"}, map[string]string{"title": "x"})

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	require.NotNil(t, env.Message)
	assert.Equal(t, "Issue retrieved", env.Message.SuccessType)
	assert.Equal(t, "Issue details retrieved successfully", env.Message.SuccessMessage)
	assert.NotNil(t, env.Data)
}

func TestCreatedStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", nil)

	Created(rec, req, "Issue created", "Issue has been successfully created", nil, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestErrStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", apperr.NewNotFound("Issue not found", "missing"), http.StatusNotFound},
		{"invalid input", apperr.NewInvalidInput("Invalid updates", "bad"), http.StatusBadRequest},
		{"permission denied", apperr.NewPermissionDenied("Permission denied", "no"), http.StatusForbidden},
		{"conflict", apperr.NewConflict("Duplicate user", "exists"), http.StatusConflict},
		{"internal", apperr.NewInternal("Update failed", "boom", errors.New("db down")), http.StatusInternalServerError},
		{"unclassified", errors.New("raw failure"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/", nil)
			Err(rec, req, tt.err)
			assert.Equal(t, tt.want, rec.Code)

			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Message)
			assert.NotEmpty(t, env.Message.ErrorType)
			assert.NotEmpty(t, env.Message.ErrorMessage)
		})
	}
}

func TestErrUnclassifiedHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	Err(rec, req, errors.New("pq: password authentication failed"))

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Unexpected failure", env.Message.ErrorType)
	assert.NotContains(t, env.Message.ErrorMessage, "password")
}

func TestErrUnauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	ErrUnauthorized(rec, req, "Please authenticate")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Authentication required", env.Message.ErrorType)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 10},
		{"?page=3&limit=25", 3, 25},
		{"?page=0&limit=-5", 1, 10},
		{"?page=abc&limit=xyz", 1, 10},
		{"?limit=500", 1, 100},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/"+tt.query, nil)
		pg := ParsePagination(req)
		assert.Equal(t, tt.wantPage, pg.Page, tt.query)
		assert.Equal(t, tt.wantLimit, pg.Limit, tt.query)
	}
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2, 3}, 23, 2, 10)
	assert.Equal(t, int64(23), p.TotalDocs)
	assert.Equal(t, int64(3), p.TotalPages)
	assert.Equal(t, 2, p.Page)

	p = NewPaginated([]int{}, 20, 1, 10)
	assert.Equal(t, int64(2), p.TotalPages)
}
