package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// The router must assemble without a database; only the endpoints themselves
// need one.
func TestRouterPing(t *testing.T) {
	router := NewRouter(nil, nil, nil, "test-secret")
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/ping")
	if err != nil {
		t.Fatalf("ping request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if body["status"] != "pong" {
		t.Errorf("expected pong, got %q", body["status"])
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := NewRouter(nil, nil, nil, "test-secret")
	srv := httptest.NewServer(router)
	defer srv.Close()

	for _, path := range []string{
		"/api/v1/issues",
		"/api/v1/projects",
		"/api/v1/sprints/project/9a1f55d4-6f9a-4f5a-b0a4-1c1f5f3f0a11",
		"/api/v1/users/me",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("request to %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without a token, got %d", path, resp.StatusCode)
		}
	}
}
