package mock

import (
	"context"
	"log/slog"
	"time"

	"github.com/fixlens/fixlens/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	DiagnoseResponse *ai.Diagnosis
	DiagnoseError    error

	// Call tracking for testing
	DiagnoseCalls int
	LastParams    ai.DiagnoseParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Diagnose returns a canned diagnosis
func (p *Provider) Diagnose(ctx context.Context, params ai.DiagnoseParams) (*ai.Diagnosis, error) {
	p.DiagnoseCalls++
	p.LastParams = params

	if p.DiagnoseError != nil {
		return nil, p.DiagnoseError
	}
	if p.DiagnoseResponse != nil {
		return p.DiagnoseResponse, nil
	}

	// Default canned response
	return &ai.Diagnosis{
		Summary:       "The washing machine is most likely failing to drain because the drain pump filter is clogged. The rhythmic grinding noise during the spin cycle also suggests worn drum bearings, which should be inspected before they fail completely.",
		ApplianceType: "washing machine",
		Findings: []ai.Finding{
			{
				Component:    "drain pump filter",
				Issue:        "Clogged with debris, preventing the drum from draining",
				Confidence:   ai.ConfidenceHigh,
				Severity:     ai.SeverityUrgent,
				SuggestedFix: "Open the access panel at the bottom front, drain residual water, and clean the filter",
				PartsNeeded:  nil,
			},
			{
				Component:    "drum bearings",
				Issue:        "Grinding noise during spin indicates early bearing wear",
				Confidence:   ai.ConfidenceMedium,
				Severity:     ai.SeverityRoutine,
				SuggestedFix: "Have a technician inspect and replace the bearing kit if play is detected in the drum",
				PartsNeeded:  []string{"drum bearing kit"},
			},
		},
		RepairDifficulty: "diy",
		SafetyNotes:      "Unplug the machine and shut off the water supply before opening any panels.",
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  1250,
			OutputTokens: 850,
			CostCents:    5,
			Duration:     250 * time.Millisecond,
		},
	}, nil
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.DiagnoseCalls = 0
	p.DiagnoseResponse = nil
	p.DiagnoseError = nil
	p.LastParams = ai.DiagnoseParams{}
}
