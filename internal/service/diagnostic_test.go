package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fixlens/fixlens/internal/ai"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// =============================================================================
// Failure Classification Tests
// =============================================================================

func TestFailureReason(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{"invalid media", ai.EAIInvalidMedia, "invalid_media"},
		{"content policy", ai.EAIContentPolicy, "content_policy"},
		{"payload missing", storage.ErrNotFound, "payload_missing"},
		{"cancelled", context.Canceled, "cancelled"},
		{"deadline", context.DeadlineExceeded, "cancelled"},
		{"rate limited provider", ai.EAIRateLimit, "provider_unavailable"},
		{"provider timeout", ai.EAITimeout, "provider_unavailable"},
		{"wrapped error keeps class", fmt.Errorf("diagnose: %w", ai.EAIInvalidMedia), "invalid_media"},
		{"unknown error", errors.New("boom"), "analysis_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := failureReason(tc.err); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

// =============================================================================
// Serialization Retry Tests
// =============================================================================

func TestIsSerializationError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped serialization failure", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isSerializationError(tc.err); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

// =============================================================================
// Diagnosis Persistence Shape Tests
// =============================================================================

func TestDiagnosisPayload(t *testing.T) {
	d := &ai.Diagnosis{
		Summary:          "Compressor relay failure",
		ApplianceType:    "refrigerator",
		RepairDifficulty: "moderate",
		SafetyNotes:      "Unplug before servicing",
		Findings: []ai.Finding{
			{Component: "compressor relay", Issue: "Clicking noise from rear"},
		},
		Usage: ai.UsageInfo{Model: "mock-diagnoser-v1"},
	}

	rec := diagnosisPayload(d)

	if rec.Summary != d.Summary {
		t.Errorf("expected summary %q, got %q", d.Summary, rec.Summary)
	}
	if rec.Model != "mock-diagnoser-v1" {
		t.Errorf("expected model from usage, got %q", rec.Model)
	}
	if len(rec.Findings) != 1 || rec.Findings[0].Issue != "Clicking noise from rear" {
		t.Errorf("unexpected findings: %+v", rec.Findings)
	}
}

// =============================================================================
// Submission Gating Tests
// =============================================================================

type stubKillSwitch struct{ enabled bool }

func (s *stubKillSwitch) Enabled() bool { return s.enabled }

func (s *stubKillSwitch) Status() domain.KillSwitchStatus {
	return domain.KillSwitchStatus{SubmissionsEnabled: s.enabled}
}

func (s *stubKillSwitch) Disable(ctx context.Context, actorID uuid.UUID, reason string) error {
	s.enabled = false
	return nil
}

func (s *stubKillSwitch) Enable(ctx context.Context, actorID uuid.UUID, reason string) error {
	s.enabled = true
	return nil
}

// recordingProvider counts analysis calls.
type recordingProvider struct {
	calls     int
	diagnosis *ai.Diagnosis
	err       error
}

func (p *recordingProvider) Diagnose(ctx context.Context, params ai.DiagnoseParams) (*ai.Diagnosis, error) {
	p.calls++
	return p.diagnosis, p.err
}

// A plan that locks the resource must be rejected before any analysis money
// is spent: the provider must never see the request.
func TestSubmit_LockedPlanNeverReachesAnalysis(t *testing.T) {
	provider := &recordingProvider{}
	ent := &stubEntitlements{
		checkSubmissionErr: domain.FeatureLocked("entitlement.check_submission", domain.ResourceText, domain.TierFree),
	}
	svc := NewDiagnosticService(nil, nil, ent, &stubKillSwitch{enabled: true},
		provider, nil, nil, testServiceLogger())

	_, err := svc.Submit(context.Background(), domain.SubmitDiagnosticParams{
		UserID:       uuid.New(),
		ResourceType: domain.ResourceText,
		Description:  "washer leaks from the door seal",
	})
	if domain.ErrorCode(err) != domain.ELOCKED {
		t.Fatalf("expected ELOCKED, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider must not be called for a locked plan, got %d calls", provider.calls)
	}
}

// Same for an exhausted quota: the advisory check fires before analysis.
func TestSubmit_ExhaustedQuotaNeverReachesAnalysis(t *testing.T) {
	reset := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	provider := &recordingProvider{}
	ent := &stubEntitlements{
		checkSubmissionErr: domain.QuotaExceeded("entitlement.check_submission",
			domain.ResourcePhoto, domain.TierPro, 30, 30, &reset),
	}
	svc := NewDiagnosticService(nil, nil, ent, &stubKillSwitch{enabled: true},
		provider, nil, nil, testServiceLogger())

	_, err := svc.Submit(context.Background(), domain.SubmitDiagnosticParams{
		UserID:       uuid.New(),
		ResourceType: domain.ResourcePhoto,
		PayloadRef:   "users/u/media/photo/x.jpg",
	})
	if domain.ErrorCode(err) != domain.EQUOTA {
		t.Fatalf("expected EQUOTA, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider must not be called past quota, got %d calls", provider.calls)
	}
}

// The kill switch outranks everything, including request validation: while
// submissions are off, even a malformed request learns only that.
func TestSubmit_DisabledSwitchOutranksValidation(t *testing.T) {
	svc := NewDiagnosticService(nil, nil, nil, &stubKillSwitch{enabled: false},
		nil, nil, nil, testServiceLogger())

	_, err := svc.Submit(context.Background(), domain.SubmitDiagnosticParams{
		ResourceType: domain.ResourceType("hologram"),
	})
	if domain.ErrorCode(err) != domain.EDISABLED {
		t.Fatalf("expected EDISABLED, got %v", err)
	}
}
