// Package domain contains core business types and interfaces.
//
// This file defines the Diagnostic entity: a single analysis request and
// its result. Diagnostic status transitions are the basis for whether a
// usage event is committed: usage exists if and only if the diagnostic
// completed.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DiagnosticStatus represents the lifecycle state of a diagnostic.
type DiagnosticStatus string

const (
	DiagnosticStatusPending   DiagnosticStatus = "pending"
	DiagnosticStatusCompleted DiagnosticStatus = "completed"
	DiagnosticStatusFailed    DiagnosticStatus = "failed"
)

// IsValid returns true for a known diagnostic status.
func (s DiagnosticStatus) IsValid() bool {
	switch s {
	case DiagnosticStatusPending, DiagnosticStatusCompleted, DiagnosticStatusFailed:
		return true
	default:
		return false
	}
}

func (s DiagnosticStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the status may move to target. Pending is
// the only non-terminal state.
func (s DiagnosticStatus) CanTransitionTo(target DiagnosticStatus) bool {
	if s != DiagnosticStatusPending {
		return false
	}
	return target == DiagnosticStatusCompleted || target == DiagnosticStatusFailed
}

// Diagnostic represents a single analysis request/result.
type Diagnostic struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ResourceType ResourceType
	Status       DiagnosticStatus
	PayloadRef   string // storage key of the submitted media; empty for text
	Description  string // user-supplied fault description

	// Result fields, populated when Status is completed.
	Summary string          // short human-readable finding
	Result  json.RawMessage // full structured diagnosis from the provider

	FailureReason string // populated when Status is failed
	TierAtTime    Tier   // tier in effect when the diagnostic was submitted

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// SubmitDiagnosticParams contains the validated parameters for a submission.
type SubmitDiagnosticParams struct {
	UserID       uuid.UUID
	ResourceType ResourceType
	PayloadRef   string
	Description  string
}

// SubmitDiagnosticResult is returned to the client on a successful
// submission: the completed diagnostic plus a usage snapshot taken at
// commit time.
type SubmitDiagnosticResult struct {
	Diagnostic *Diagnostic
	Usage      UsageSnapshot
}

// ListDiagnosticsParams contains pagination and filtering for listings.
type ListDiagnosticsParams struct {
	UserID   uuid.UUID
	Statuses []DiagnosticStatus // empty means all
	Limit    int64
	Offset   int64
}

// ListDiagnosticsResult is a page of diagnostics.
type ListDiagnosticsResult struct {
	Diagnostics []Diagnostic
	Total       int64
	Limit       int64
	Offset      int64
}
