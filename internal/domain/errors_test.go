package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"coded error", Invalid("op", "bad input"), EINVALID},
		{"wrapped coded error", fmt.Errorf("outer: %w", NotFound("op", "diagnostic", "abc")), ENOTFOUND},
		{"plain error", errors.New("boom"), EINTERNAL},
		{"quota error", QuotaExceeded("op", ResourcePhoto, TierFree, 2, 2, nil), EQUOTA},
		{"locked feature", FeatureLocked("op", ResourceVideo, TierFree), ELOCKED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage_HidesInternalDetails(t *testing.T) {
	internal := Internal(errors.New("pq: connection refused"), "DiagnosticService.Submit", "query failed")

	msg := ErrorMessage(internal)
	assert.NotContains(t, msg, "connection refused")
	assert.NotContains(t, msg, "DiagnosticService")

	plain := errors.New("pq: connection refused")
	assert.NotContains(t, ErrorMessage(plain), "connection refused")
}

func TestErrorMessage_SurfacesClientFacingMessage(t *testing.T) {
	err := Invalid("PropertyService.Create", "Label is required")
	assert.Equal(t, "Label is required", ErrorMessage(err))
}

func TestQuotaError_CarriesWindowState(t *testing.T) {
	end := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	err := QuotaExceeded("op", ResourcePhoto, TierPro, 30, 30, &end)

	var qe *QuotaError
	assert.True(t, errors.As(fmt.Errorf("submit: %w", err), &qe))
	assert.Equal(t, EQUOTA, qe.Code)
	assert.Equal(t, ResourcePhoto, qe.Resource)
	assert.Equal(t, int64(30), qe.Used)
	assert.Equal(t, int64(30), qe.Limit)
	assert.Equal(t, &end, qe.PeriodEnd)
}

func TestFeatureLocked_DistinctFromQuotaExceeded(t *testing.T) {
	locked := FeatureLocked("op", ResourceVideo, TierFree)
	assert.Equal(t, ELOCKED, locked.Code)
	assert.NotEqual(t, ErrorCode(QuotaExceeded("op", ResourceText, TierFree, 5, 5, nil)), locked.Code)
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(cause, ECONFLICT, "op", "conflicting update")

	assert.Equal(t, ECONFLICT, ErrorCode(wrapped))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestValidationError_AccumulatesFields(t *testing.T) {
	err := NewValidationError("op", "email", "Email is required")
	combined := AddFieldError(err, "password", "Password is too short")

	assert.Len(t, combined.Fields, 2)
	assert.Equal(t, "Email is required", combined.Fields["email"])
	assert.Equal(t, "Password is too short", combined.Fields["password"])
}
