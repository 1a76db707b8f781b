package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fixlens/fixlens/internal/ai"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/google/uuid"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// MaxMediaSize is the maximum attached media size in bytes (20MB)
	MaxMediaSize = 20 * 1024 * 1024

	// Pricing in cents per 1M tokens for claude-3-5-sonnet
	PricingInputCents  = 300  // $3 per 1M input tokens
	PricingOutputCents = 1500 // $15 per 1M output tokens
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements the ai.Provider interface using Anthropic's Claude API
type Provider struct {
	config  Config
	client  *http.Client
	queries *repository.Queries
	logger  *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, queries *repository.Queries, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		queries: queries,
		logger:  logger,
	}, nil
}

// Diagnose analyzes an appliance fault submission using Claude
func (p *Provider) Diagnose(ctx context.Context, params ai.DiagnoseParams) (*ai.Diagnosis, error) {
	startTime := time.Now()

	if err := p.validateParams(params); err != nil {
		return nil, ai.WrapError("diagnose", err)
	}

	req, err := p.buildDiagnoseRequest(ctx, params)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeWithRetry(ctx, req)
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	result, err := p.parseDiagnosisResponse(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	duration := time.Since(startTime)
	result.Usage = ai.UsageInfo{
		Model:        p.config.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		CostCents:    p.calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		Duration:     duration,
	}

	// Track usage in database; log but don't fail the diagnosis
	if err := p.trackUsage(ctx, params.UserID, params.DiagnosticID, result.Usage); err != nil {
		p.logger.Error("Failed to track AI usage", "error", err)
	}

	return result, nil
}

// validateParams validates the diagnosis parameters
func (p *Provider) validateParams(params ai.DiagnoseParams) error {
	if params.ResourceType == "text" {
		if params.Description == "" {
			return fmt.Errorf("%w: text submission requires a description", ai.EAIInvalidMedia)
		}
		return nil
	}

	if params.ResourceType == "photo" {
		if len(params.MediaData) == 0 {
			return ai.EAIInvalidMedia
		}
		if len(params.MediaData) > MaxMediaSize {
			return fmt.Errorf("%w: media size %d exceeds maximum %d", ai.EAIInvalidMedia, len(params.MediaData), MaxMediaSize)
		}
		validTypes := map[string]bool{
			"image/jpeg": true,
			"image/png":  true,
			"image/gif":  true,
			"image/webp": true,
		}
		if !validTypes[params.ContentType] {
			return fmt.Errorf("%w: unsupported content type %s", ai.EAIInvalidMedia, params.ContentType)
		}
	}

	return nil
}

// buildDiagnoseRequest builds the HTTP request for a diagnosis
func (p *Provider) buildDiagnoseRequest(ctx context.Context, params ai.DiagnoseParams) (*http.Request, error) {
	var content []apiContent

	// Photos are attached as image blocks; video and audio evidence reaches
	// the model through the description in the prompt.
	if params.ResourceType == "photo" && len(params.MediaData) > 0 {
		content = append(content, apiContent{
			Type: "image",
			Source: &apiImageSource{
				Type:      "base64",
				MediaType: params.ContentType,
				Data:      base64.StdEncoding.EncodeToString(params.MediaData),
			},
		})
	}

	content = append(content, apiContent{
		Type: "text",
		Text: buildDiagnosisPrompt(params.ResourceType, params.Description),
	})

	reqBody := apiRequest{
		Model:     p.config.Model,
		MaxTokens: 4096,
		Messages: []apiMessage{
			{Role: "user", Content: content},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", APIBaseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	return req, nil
}

// executeWithRetry executes an HTTP request with exponential backoff retry
func (p *Provider) executeWithRetry(ctx context.Context, req *http.Request) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		resp, err := p.executeRequest(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !ai.IsRetryable(err) {
			return nil, err
		}

		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		// Exponential backoff: base * 2^(attempt-1)
		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying AI request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// Recreate request body for retry since it was consumed
		if req.Body != nil {
			bodyBytes, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, fmt.Errorf("read request body for retry: %w", err)
			}
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(ctx context.Context, req *http.Request) (*apiResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to domain errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		if errResp.Error.Type == "invalid_request_error" {
			return ai.EAIInvalidMedia
		}
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// parseDiagnosisResponse parses the API response into a Diagnosis
func (p *Provider) parseDiagnosisResponse(resp *apiResponse) (*ai.Diagnosis, error) {
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response content")
	}

	var textContent string
	for _, content := range resp.Content {
		if content.Type == "text" {
			textContent = content.Text
			break
		}
	}

	if textContent == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	var output diagnosisOutput
	if err := json.Unmarshal([]byte(textContent), &output); err != nil {
		return nil, fmt.Errorf("parse diagnosis output: %w", err)
	}

	result := &ai.Diagnosis{
		Summary:          output.Summary,
		ApplianceType:    output.ApplianceType,
		Findings:         make([]ai.Finding, 0, len(output.Findings)),
		RepairDifficulty: output.RepairDifficulty,
		SafetyNotes:      output.SafetyNotes,
	}

	for _, f := range output.Findings {
		finding := ai.Finding{
			Component:    f.Component,
			Issue:        f.Issue,
			Confidence:   ai.Confidence(f.Confidence),
			Severity:     ai.Severity(f.Severity),
			SuggestedFix: f.SuggestedFix,
			PartsNeeded:  f.PartsNeeded,
		}

		// Validate and set defaults
		if !finding.Confidence.Valid() {
			finding.Confidence = ai.ConfidenceMedium
		}
		if !finding.Severity.Valid() {
			finding.Severity = ai.SeverityRoutine
		}

		result.Findings = append(result.Findings, finding)
	}

	return result, nil
}

// calculateCost calculates the cost in cents for the given token usage
func (p *Provider) calculateCost(inputTokens, outputTokens int) int {
	inputCost := (inputTokens * PricingInputCents) / 1_000_000
	outputCost := (outputTokens * PricingOutputCents) / 1_000_000
	return inputCost + outputCost
}

// trackUsage records AI usage in the database
func (p *Provider) trackUsage(ctx context.Context, userID, diagnosticID uuid.UUID, usage ai.UsageInfo) error {
	_, err := p.queries.CreateAiUsage(ctx, repository.CreateAiUsageParams{
		UserID: userID,
		DiagnosticID: uuid.NullUUID{
			UUID:  diagnosticID,
			Valid: diagnosticID != uuid.Nil,
		},
		Operation:    "diagnose",
		Model:        usage.Model,
		InputTokens:  int64(usage.InputTokens),
		OutputTokens: int64(usage.OutputTokens),
		CostCents:    int64(usage.CostCents),
	})
	return err
}

// API request/response types

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []apiContentOutput `json:"content"`
	Model   string             `json:"model"`
	Usage   apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// diagnosisOutput represents the JSON structure returned by Claude
type diagnosisOutput struct {
	Summary          string          `json:"summary"`
	ApplianceType    string          `json:"appliance_type"`
	Findings         []outputFinding `json:"findings"`
	RepairDifficulty string          `json:"repair_difficulty"`
	SafetyNotes      string          `json:"safety_notes"`
}

type outputFinding struct {
	Component    string   `json:"component"`
	Issue        string   `json:"issue"`
	Confidence   string   `json:"confidence"`
	Severity     string   `json:"severity"`
	SuggestedFix string   `json:"suggested_fix"`
	PartsNeeded  []string `json:"parts_needed"`
}
