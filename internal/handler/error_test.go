package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fixlens/fixlens/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// =============================================================================
// Status Code Mapping Tests
// =============================================================================

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ELOCKED, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EQUOTA, http.StatusTooManyRequests},
		{domain.EDISABLED, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"bogus", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ErrorCodeToHTTPStatus(tt.code); got != tt.want {
				t.Errorf("code %q: expected status %d, got %d", tt.code, tt.want, got)
			}
		})
	}
}

// =============================================================================
// Error Response Tests
// =============================================================================

func TestErrorResponse_JSONShape(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/properties", nil)

	ErrorResponse(rec, req, testLogger(), domain.Invalid("PropertyService.Create", "Label is required"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var body JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error.Code != domain.EINVALID {
		t.Errorf("expected code %q, got %q", domain.EINVALID, body.Error.Code)
	}
	if body.Error.Message != "Label is required" {
		t.Errorf("unexpected message: %q", body.Error.Message)
	}
}

func TestErrorResponse_DoesNotExposeInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/diagnostics", nil)

	cause := errors.New("pq: deadlock detected on relation usage_events")
	ErrorResponse(rec, req, testLogger(), domain.Internal(cause, "DiagnosticService.Submit", "commit failed"))

	body := rec.Body.String()
	if strings.Contains(body, "deadlock") || strings.Contains(body, "usage_events") {
		t.Errorf("response exposes database details: %s", body)
	}
	if strings.Contains(body, "DiagnosticService") {
		t.Errorf("response exposes operation name: %s", body)
	}
}

func TestErrorResponse_QuotaExceededPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/diagnostics", nil)

	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	qe := domain.QuotaExceeded("DiagnosticService.Submit", domain.ResourcePhoto, domain.TierPro, 30, 30, &end)
	ErrorResponse(rec, req, testLogger(), qe)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code         string `json:"code"`
			ResourceType string `json:"resource_type"`
			Tier         string `json:"tier"`
			Used         int64  `json:"used"`
			Limit        int64  `json:"limit"`
			PeriodEnd    string `json:"period_end"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error.Code != domain.EQUOTA {
		t.Errorf("expected code %q, got %q", domain.EQUOTA, body.Error.Code)
	}
	if body.Error.ResourceType != "photo" || body.Error.Tier != "pro" {
		t.Errorf("unexpected resource/tier: %q/%q", body.Error.ResourceType, body.Error.Tier)
	}
	if body.Error.Used != 30 || body.Error.Limit != 30 {
		t.Errorf("unexpected usage numbers: %d/%d", body.Error.Used, body.Error.Limit)
	}
	if body.Error.PeriodEnd != "2025-07-01T00:00:00Z" {
		t.Errorf("unexpected period_end: %q", body.Error.PeriodEnd)
	}
}

func TestErrorResponse_LockedFeatureOmitsUsage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/diagnostics", nil)

	ErrorResponse(rec, req, testLogger(), domain.FeatureLocked("op", domain.ResourceVideo, domain.TierFree))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	var body map[string]map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if _, ok := body["error"]["used"]; ok {
		t.Error("locked feature response should not include usage counters")
	}
	if body["error"]["code"] != domain.ELOCKED {
		t.Errorf("expected code %q, got %v", domain.ELOCKED, body["error"]["code"])
	}
}

func TestValidationErrorResponse_FieldPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/register", nil)

	ve := domain.NewValidationError("UserService.Register", "email", "Email is required")
	ValidationErrorResponse(rec, req, testLogger(), ve)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error.Fields["email"] != "Email is required" {
		t.Errorf("expected field error, got %v", body.Error.Fields)
	}
	if strings.Contains(rec.Body.String(), "UserService") {
		t.Error("response exposes internal operation name")
	}
}

func TestDisabledResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/diagnostics", nil)

	ErrorResponse(rec, req, testLogger(), domain.ServiceDisabled("DiagnosticService.Submit"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
