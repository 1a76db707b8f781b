package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider defines the interface for AI-powered appliance fault diagnosis.
type Provider interface {
	// Diagnose analyzes a submitted appliance fault and returns a structured
	// diagnosis. Media submissions (photo) attach the raw bytes; video and
	// audio submissions are diagnosed from the user's description plus
	// extracted metadata; text submissions are description-only.
	Diagnose(ctx context.Context, params DiagnoseParams) (*Diagnosis, error)
}

// DiagnoseParams contains the parameters for one diagnosis request.
type DiagnoseParams struct {
	ResourceType string    // "photo", "video", "audio", or "text"
	MediaData    []byte    // Raw media bytes; nil for text submissions
	ContentType  string    // MIME type of MediaData
	Description  string    // User-supplied fault description
	DiagnosticID uuid.UUID // Diagnostic ID for usage tracking
	UserID       uuid.UUID // User ID for usage tracking
}

// Diagnosis is the structured result of an appliance fault analysis.
type Diagnosis struct {
	Summary         string    // One-paragraph human-readable finding
	ApplianceType   string    // e.g. "washing machine", "refrigerator"
	Findings        []Finding // Individual fault findings
	RepairDifficulty string   // "diy", "technician", or "replace"
	SafetyNotes     string    // Warnings the user should read before acting
	Usage           UsageInfo // Token usage and cost information
}

// Finding represents a single identified fault.
type Finding struct {
	Component   string     // Affected component (e.g. "drain pump")
	Issue       string     // What is wrong with it
	Confidence  Confidence // How confident the model is
	Severity    Severity   // How urgent the fault is
	SuggestedFix string    // Recommended remediation
	PartsNeeded []string   // Replacement parts, if any
}

// UsageInfo tracks API usage for billing and monitoring.
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// Confidence levels for findings.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"   // 90%+ confident
	ConfidenceMedium Confidence = "medium" // 60-90% confident
	ConfidenceLow    Confidence = "low"    // 30-60% confident
)

// Valid checks if the confidence level is valid.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Severity levels for findings.
type Severity string

const (
	SeverityHazard   Severity = "hazard"   // Fire, gas, water, or electrical risk
	SeverityUrgent   Severity = "urgent"   // Appliance unusable or degrading fast
	SeverityRoutine  Severity = "routine"  // Repair at convenience
	SeverityCosmetic Severity = "cosmetic" // No functional impact
)

// Valid checks if the severity level is valid.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHazard, SeverityUrgent, SeverityRoutine, SeverityCosmetic:
		return true
	default:
		return false
	}
}

// ProviderConfig contains common configuration for AI providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations.
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidMedia indicates the media format or content is invalid
	EAIInvalidMedia = errors.New("invalid media format or content")

	// EAIContentPolicy indicates the submission violates content policy
	EAIContentPolicy = errors.New("submission violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
