package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLabels(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, []string{}},
		{"simple", []string{"backend", "urgent"}, []string{"backend", "urgent"}},
		{"comma string with blanks", []string{"a, b, ,c"}, []string{"a", "b", "c"}},
		{"mixed form values", []string{"a,b", "c"}, []string{"a", "b", "c"}},
		{"duplicates keep first", []string{"a", "b", "a"}, []string{"a", "b"}},
		{"whitespace trimmed", []string{"  a  ", "\tb"}, []string{"a", "b"}},
		{"all empty", []string{"", " ", ","}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabels(tt.in))
		})
	}
}

func TestNormalizeLabelsJSON(t *testing.T) {
	got, err := NormalizeLabelsJSON(json.RawMessage(`["a", "b, c", "a"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got, err = NormalizeLabelsJSON(json.RawMessage(`"x, y, ,z"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, got)

	got, err = NormalizeLabelsJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)

	got, err = NormalizeLabelsJSON(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Equal(t, []string{}, got)

	_, err = NormalizeLabelsJSON(json.RawMessage(`42`))
	assert.Error(t, err)
}
