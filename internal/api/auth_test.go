package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		provided   string
		configured string
		want       bool
	}{
		{"match", testKey, testKey, true},
		{"mismatch", testKey, "other-key", false},
		{"length differs", testKey, testKey + "x", false},
		{"nothing provided", "", testKey, false},
		{"no key configured", testKey, "", false},
	}
	for _, tt := range tests {
		if got := ValidateAPIKey(tt.provided, tt.configured); got != tt.want {
			t.Errorf("%s: ValidateAPIKey = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExtractAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{header: "Bearer " + testKey, want: testKey},
		{header: "Bearer  padded-key ", want: "padded-key"},
		{header: "", wantErr: true},
		{header: "Basic dXNlcjpwYXNz", wantErr: true},
		{header: "Bearer   ", wantErr: true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/root", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		key, err := ExtractAPIKey(req)
		if tt.wantErr {
			if err == nil {
				t.Errorf("header %q: expected error", tt.header)
			}
			continue
		}
		if err != nil {
			t.Errorf("header %q: unexpected error %v", tt.header, err)
		} else if key != tt.want {
			t.Errorf("header %q: key = %q, want %q", tt.header, key, tt.want)
		}
	}
}

func TestEmptyConfiguredKeyRejectsEverything(t *testing.T) {
	server := newTestServer(&mockRelocator{}, &mockRoots{}, nil)
	server.config.APIKey = ""

	req := httptest.NewRequest(http.MethodGet, "/root", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rr := httptest.NewRecorder()
	server.setupRoutes().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rr.Code)
	}
}
