package core

import (
	"encoding/json"
	"strings"

	"github.com/trackline/trackline/pkg/apperr"
)

// NormalizeLabels flattens the raw label values into a trimmed, de-duplicated
// list with empty entries dropped. Each value may itself be a comma-separated
// string, so both `labels=a&labels=b` and `labels=a, b, ,c` come out the same.
func NormalizeLabels(values []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			label := strings.TrimSpace(part)
			if label == "" || seen[label] {
				continue
			}
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

// NormalizeLabelsJSON accepts the labels field of a JSON payload as either an
// array of strings or a single comma-separated string.
func NormalizeLabelsJSON(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return NormalizeLabels(list), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return NormalizeLabels([]string{s}), nil
	}

	return nil, apperr.NewInvalidInput("Invalid labels",
		"Labels must be an array of strings or a comma-separated string")
}
