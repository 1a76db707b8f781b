package handler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fixlens/fixlens/internal/domain"
)

type decodeTarget struct {
	Name string `json:"name"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
	}{
		{"valid object", "application/json", `{"name":"fridge"}`, false},
		{"charset suffix accepted", "application/json; charset=utf-8", `{"name":"fridge"}`, false},
		{"missing content type accepted", "", `{"name":"fridge"}`, false},
		{"wrong content type", "text/plain", `{"name":"fridge"}`, true},
		{"empty body", "application/json", ``, true},
		{"malformed json", "application/json", `{"name":`, true},
		{"unknown field", "application/json", `{"name":"fridge","typo":true}`, true},
		{"trailing garbage", "application/json", `{"name":"fridge"}{"again":1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/test", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			var dst decodeTarget
			err := decodeJSON(req, &dst)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecodeJSON_ErrorsAreInvalid(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/test", strings.NewReader(`not json`))
	req.Header.Set("Content-Type", "application/json")

	var dst decodeTarget
	err := decodeJSON(req, &dst)
	if err == nil {
		t.Fatal("expected error")
	}
	if code := domain.ErrorCode(err); code != domain.EINVALID {
		t.Errorf("expected %q, got %q", domain.EINVALID, code)
	}
}

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, 201, map[string]string{"status": "created"})

	if rec.Code != 201 {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"status":"created"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRespondJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	respondJSON(rec, 204, nil)

	if rec.Code != 204 {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %s", rec.Body.String())
	}
}
