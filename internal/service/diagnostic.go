// Package service contains the business logic layer.
//
// This file implements the diagnostic submission coordinator. A submission
// runs in three phases: an advisory quota check that rejects cheaply before
// any money is spent, the external AI analysis, and an atomic commit that
// re-validates the quota under a row lock before the usage event and the
// completed result become visible together. The ledger is the only
// authority: a diagnostic is billed if and only if its usage event exists,
// and the unique diagnostic_id constraint makes double-billing impossible.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fixlens/fixlens/internal/ai"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/metrics"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/fixlens/fixlens/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"github.com/sqlc-dev/pqtype"
)

const (
	// MaxDescriptionLength bounds the user-supplied fault description.
	MaxDescriptionLength = 4000

	// commitRetryBaseDelay is the initial backoff for commit retries.
	commitRetryBaseDelay = 50 * time.Millisecond

	// commitMaxRetries bounds retries of the commit transaction when it
	// loses a serialization or deadlock race.
	commitMaxRetries = 2
)

// =============================================================================
// Interface Definition
// =============================================================================

// DiagnosticService coordinates diagnostic submissions end to end.
type DiagnosticService interface {
	// Submit runs a full diagnostic: quota check, AI analysis, and atomic
	// commit of the result plus its usage event.
	// Returns domain.EDISABLED when submissions are switched off,
	// domain.ELOCKED / domain.EQUOTA for quota rejections.
	Submit(ctx context.Context, params domain.SubmitDiagnosticParams) (*domain.SubmitDiagnosticResult, error)

	// GetByID retrieves a single diagnostic owned by the user.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Diagnostic, error)

	// List returns a page of the user's diagnostics, newest first.
	List(ctx context.Context, params domain.ListDiagnosticsParams) (*domain.ListDiagnosticsResult, error)
}

// =============================================================================
// Implementation
// =============================================================================

type diagnosticService struct {
	db           *sql.DB
	queries      *repository.Queries
	entitlements EntitlementService
	killSwitch   KillSwitchService
	provider     ai.Provider
	store        storage.Storage
	preparer     MediaPreparer
	logger       *slog.Logger
	now          func() time.Time
}

// NewDiagnosticService creates a new DiagnosticService.
func NewDiagnosticService(
	db *sql.DB,
	queries *repository.Queries,
	entitlements EntitlementService,
	killSwitch KillSwitchService,
	provider ai.Provider,
	store storage.Storage,
	preparer MediaPreparer,
	logger *slog.Logger,
) DiagnosticService {
	return &diagnosticService{
		db:           db,
		queries:      queries,
		entitlements: entitlements,
		killSwitch:   killSwitch,
		provider:     provider,
		store:        store,
		preparer:     preparer,
		logger:       logger,
		now:          time.Now,
	}
}

// Submit runs a full diagnostic submission.
func (s *diagnosticService) Submit(ctx context.Context, params domain.SubmitDiagnosticParams) (*domain.SubmitDiagnosticResult, error) {
	const op = "DiagnosticService.Submit"

	// The kill switch outranks everything else, validation included: while
	// submissions are off, the caller learns that and nothing more. Reads
	// and billing stay up.
	if !s.killSwitch.Enabled() {
		return nil, domain.ServiceDisabled(op)
	}

	if err := s.validateParams(op, params); err != nil {
		return nil, err
	}

	// Advisory check: reject before spending anything on analysis. The
	// result is not binding; the commit below re-validates under a lock.
	if err := s.entitlements.CheckSubmission(ctx, params.UserID, params.ResourceType); err != nil {
		s.recordQuotaRejection(params.ResourceType, err)
		return nil, err
	}

	userRow, err := s.queries.GetUserByID(ctx, params.UserID)
	if err != nil {
		return nil, domain.NotFound(op, "user", params.UserID.String())
	}
	user := userFromRow(userRow)
	tier := user.EffectiveTier(s.now())

	diag, err := s.queries.CreateDiagnostic(ctx, repository.CreateDiagnosticParams{
		UserID:       params.UserID,
		ResourceType: params.ResourceType.String(),
		PayloadRef:   params.PayloadRef,
		Description:  params.Description,
		TierAtTime:   tier.String(),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create diagnostic")
	}

	metrics.DiagnosticsSubmitted.WithLabelValues(params.ResourceType.String()).Inc()
	s.logger.Info("diagnostic submitted",
		"diagnostic_id", diag.ID,
		"user_id", params.UserID,
		"resource_type", params.ResourceType,
		"tier", tier,
	)

	diagnosis, err := s.analyze(ctx, diag.ID, params)
	if err != nil {
		s.failDiagnostic(diag.ID, params.ResourceType, failureReason(err))
		return nil, s.mapAnalysisError(op, err)
	}

	metrics.AIAPICalls.WithLabelValues("success").Inc()
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(diagnosis.Usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(diagnosis.Usage.OutputTokens))
	metrics.AICostCentsTotal.Add(float64(diagnosis.Usage.CostCents))

	result, err := s.commit(ctx, diag.ID, params, diagnosis)
	if err != nil {
		return nil, err
	}

	metrics.DiagnosticsCompleted.WithLabelValues(params.ResourceType.String(), "completed").Inc()
	metrics.UsageCommits.WithLabelValues(params.ResourceType.String()).Inc()

	return result, nil
}

// validateParams validates a submission before any side effects.
func (s *diagnosticService) validateParams(op string, params domain.SubmitDiagnosticParams) error {
	if !params.ResourceType.IsMetered() {
		return domain.Invalid(op, "unknown resource type")
	}
	if len(params.Description) > MaxDescriptionLength {
		return domain.Invalid(op, "Description is too long")
	}
	if params.ResourceType == domain.ResourceText {
		if strings.TrimSpace(params.Description) == "" {
			return domain.Invalid(op, "Text submissions require a description")
		}
		return nil
	}
	if params.PayloadRef == "" {
		return domain.Invalid(op, "Media submissions require an uploaded payload")
	}
	return nil
}

// analyze gathers the payload and calls the AI provider.
func (s *diagnosticService) analyze(ctx context.Context, diagnosticID uuid.UUID, params domain.SubmitDiagnosticParams) (*ai.Diagnosis, error) {
	aiParams := ai.DiagnoseParams{
		ResourceType: params.ResourceType.String(),
		Description:  params.Description,
		DiagnosticID: diagnosticID,
		UserID:       params.UserID,
	}

	switch params.ResourceType {
	case domain.ResourcePhoto:
		// Photos are fetched and downscaled before upload to the provider.
		reader, _, err := s.store.Get(ctx, params.PayloadRef)
		if err != nil {
			return nil, err
		}
		defer reader.Close()

		data, contentType, err := s.preparer.PreparePhoto(reader)
		if err != nil {
			return nil, err
		}
		aiParams.MediaData = data
		aiParams.ContentType = contentType

	case domain.ResourceVideo, domain.ResourceAudio:
		// Video and audio payloads stay in storage; the provider works from
		// the description. The payload must exist so the result can be
		// reviewed against it later.
		exists, err := s.store.Exists(ctx, params.PayloadRef)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, storage.ErrNotFound
		}
	}

	diagnosis, err := s.provider.Diagnose(ctx, aiParams)
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, err
	}
	return diagnosis, nil
}

// commit atomically validates the quota and persists the result. Inside one
// transaction the user row is locked, the period count is re-taken, and
// either the usage event plus completed result are written, or the
// diagnostic is marked failed with no usage event. Retried a bounded number
// of times when the transaction loses a serialization or deadlock race.
func (s *diagnosticService) commit(ctx context.Context, diagnosticID uuid.UUID, params domain.SubmitDiagnosticParams, diagnosis *ai.Diagnosis) (*domain.SubmitDiagnosticResult, error) {
	const op = "DiagnosticService.Commit"

	var result *domain.SubmitDiagnosticResult

	backoff := retry.WithMaxRetries(commitMaxRetries, retry.NewExponential(commitRetryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := s.commitOnce(ctx, diagnosticID, params, diagnosis)
		if err != nil {
			if isSerializationError(err) {
				s.logger.Warn("usage commit lost serialization race, retrying",
					"diagnostic_id", diagnosticID, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		var qerr *domain.QuotaError
		var derr *domain.Error
		if errors.As(err, &qerr) || errors.As(err, &derr) {
			return nil, err
		}
		return nil, domain.Internal(err, op, "Failed to commit diagnostic")
	}

	return result, nil
}

func (s *diagnosticService) commitOnce(ctx context.Context, diagnosticID uuid.UUID, params domain.SubmitDiagnosticParams, diagnosis *ai.Diagnosis) (*domain.SubmitDiagnosticResult, error) {
	const op = "DiagnosticService.Commit"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	// Lock the user row: concurrent commits for the same user serialize
	// here, so the count below cannot be raced past the limit.
	userRow, err := qtx.GetUserByIDForUpdate(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	user := userFromRow(userRow)

	now := s.now()
	tier := user.EffectiveTier(now)
	period := domain.CurrentPeriod(user.SubscriptionPeriod(), now)
	limit := domain.Limit(tier, params.ResourceType)

	used, err := qtx.CountUsageEvents(ctx, repository.CountUsageEventsParams{
		UserID:       params.UserID,
		ResourceType: params.ResourceType.String(),
		PeriodStart:  period.Start,
		PeriodEnd:    period.End,
	})
	if err != nil {
		return nil, err
	}

	// The quota can have been exhausted, or the tier downgraded, between
	// the advisory check and now. The analysis cost is already sunk; the
	// diagnostic fails and the user is not billed for it.
	if limit == 0 || used >= limit {
		if err := qtx.UpdateDiagnosticFailed(ctx, diagnosticID, "quota_exhausted"); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}

		metrics.DiagnosticsCompleted.WithLabelValues(params.ResourceType.String(), "failed").Inc()
		s.recordQuotaRejection(params.ResourceType, nil)
		s.logger.Info("diagnostic rejected at commit",
			"diagnostic_id", diagnosticID, "used", used, "limit", limit, "tier", tier)

		if limit == 0 {
			return nil, domain.FeatureLocked(op, params.ResourceType, tier)
		}
		return nil, domain.QuotaExceeded(op, params.ResourceType, tier, used, limit, &period.End)
	}

	resultJSON, err := json.Marshal(diagnosisPayload(diagnosis))
	if err != nil {
		return nil, err
	}

	if err := qtx.UpdateDiagnosticCompleted(ctx, repository.UpdateDiagnosticCompletedParams{
		ID:      diagnosticID,
		Summary: diagnosis.Summary,
		Result:  pqtype.NullRawMessage{RawMessage: resultJSON, Valid: true},
	}); err != nil {
		return nil, err
	}

	// The unique index on diagnostic_id rejects a second event for this
	// diagnostic, whatever path tries to write it.
	if _, err := qtx.CreateUsageEvent(ctx, repository.CreateUsageEventParams{
		UserID:       params.UserID,
		ResourceType: params.ResourceType.String(),
		DiagnosticID: diagnosticID,
		Tier:         tier.String(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	diag, err := s.queries.GetDiagnosticByIDAndUserID(ctx, diagnosticID, params.UserID)
	if err != nil {
		return nil, err
	}

	return &domain.SubmitDiagnosticResult{
		Diagnostic: diagnosticFromRow(diag),
		Usage: domain.UsageSnapshot{
			Resource:  params.ResourceType,
			Used:      used + 1,
			Limit:     limit,
			Remaining: limit - used - 1,
			Tier:      tier,
		},
	}, nil
}

// failDiagnostic marks a diagnostic failed outside the request's fate: the
// record should survive even when the caller's context is already gone.
func (s *diagnosticService) failDiagnostic(diagnosticID uuid.UUID, resource domain.ResourceType, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queries.UpdateDiagnosticFailed(ctx, diagnosticID, reason); err != nil {
		s.logger.Error("failed to mark diagnostic failed",
			"diagnostic_id", diagnosticID, "reason", reason, "error", err)
		return
	}
	metrics.DiagnosticsCompleted.WithLabelValues(resource.String(), "failed").Inc()
	s.logger.Info("diagnostic failed", "diagnostic_id", diagnosticID, "reason", reason)
}

// GetByID retrieves a single diagnostic owned by the user.
func (s *diagnosticService) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Diagnostic, error) {
	const op = "DiagnosticService.GetByID"

	row, err := s.queries.GetDiagnosticByIDAndUserID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "diagnostic", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve diagnostic")
	}
	return diagnosticFromRow(row), nil
}

// List returns a page of the user's diagnostics, newest first.
func (s *diagnosticService) List(ctx context.Context, params domain.ListDiagnosticsParams) (*domain.ListDiagnosticsResult, error) {
	const op = "DiagnosticService.List"

	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	statuses := make([]string, 0, len(params.Statuses))
	for _, st := range params.Statuses {
		if !st.IsValid() {
			return nil, domain.Invalid(op, "unknown status filter: "+st.String())
		}
		statuses = append(statuses, st.String())
	}

	rows, err := s.queries.ListDiagnosticsByUserID(ctx, repository.ListDiagnosticsByUserIDParams{
		UserID:   params.UserID,
		Statuses: statuses,
		Limit:    params.Limit,
		Offset:   params.Offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list diagnostics")
	}

	total, err := s.queries.CountDiagnosticsByUserID(ctx, params.UserID, statuses)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to count diagnostics")
	}

	result := &domain.ListDiagnosticsResult{
		Diagnostics: make([]domain.Diagnostic, 0, len(rows)),
		Total:       total,
		Limit:       params.Limit,
		Offset:      params.Offset,
	}
	for _, row := range rows {
		result.Diagnostics = append(result.Diagnostics, *diagnosticFromRow(row))
	}
	return result, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

func (s *diagnosticService) recordQuotaRejection(resource domain.ResourceType, err error) {
	reason := domain.EQUOTA
	var qerr *domain.QuotaError
	if errors.As(err, &qerr) {
		reason = qerr.Code
	}
	metrics.QuotaRejections.WithLabelValues(resource.String(), reason).Inc()
}

// mapAnalysisError translates provider failures into coded domain errors.
func (s *diagnosticService) mapAnalysisError(op string, err error) error {
	switch {
	case errors.Is(err, ai.EAIInvalidMedia), errors.Is(err, ai.EAIContentPolicy):
		return domain.Wrap(err, domain.EINVALID, op, "The submitted media could not be analyzed")
	case errors.Is(err, storage.ErrNotFound):
		return domain.Wrap(err, domain.EINVALID, op, "The referenced payload was not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(err, domain.EINTERNAL, op, "Analysis was cancelled")
	default:
		return domain.Internal(err, op, "Analysis failed")
	}
}

// failureReason produces the stored reason string for a failed analysis.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ai.EAIInvalidMedia):
		return "invalid_media"
	case errors.Is(err, ai.EAIContentPolicy):
		return "content_policy"
	case errors.Is(err, storage.ErrNotFound):
		return "payload_missing"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ai.EAIRateLimit), errors.Is(err, ai.EAITimeout), errors.Is(err, ai.EAIUnavailable):
		return "provider_unavailable"
	default:
		return "analysis_error"
	}
}

// isSerializationError reports whether the transaction failed a
// serialization (40001) or deadlock (40P01) check and is safe to retry.
func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// diagnosisRecord is the persisted shape of a provider diagnosis.
type diagnosisRecord struct {
	Summary          string       `json:"summary"`
	ApplianceType    string       `json:"appliance_type"`
	Findings         []ai.Finding `json:"findings"`
	RepairDifficulty string       `json:"repair_difficulty"`
	SafetyNotes      string       `json:"safety_notes"`
	Model            string       `json:"model"`
}

func diagnosisPayload(d *ai.Diagnosis) diagnosisRecord {
	return diagnosisRecord{
		Summary:          d.Summary,
		ApplianceType:    d.ApplianceType,
		Findings:         d.Findings,
		RepairDifficulty: d.RepairDifficulty,
		SafetyNotes:      d.SafetyNotes,
		Model:            d.Usage.Model,
	}
}

// diagnosticFromRow converts a repository.Diagnostic row to the domain type.
func diagnosticFromRow(d repository.Diagnostic) *domain.Diagnostic {
	diag := &domain.Diagnostic{
		ID:            d.ID,
		UserID:        d.UserID,
		ResourceType:  domain.ResourceType(d.ResourceType),
		Status:        domain.DiagnosticStatus(d.Status),
		PayloadRef:    d.PayloadRef,
		Description:   d.Description,
		Summary:       d.Summary,
		FailureReason: domain.NullStringValue(d.FailureReason),
		TierAtTime:    domain.Tier(d.TierAtTime),
		CreatedAt:     d.CreatedAt,
		CompletedAt:   domain.NullTimeValue(d.CompletedAt),
	}
	if d.Result.Valid {
		diag.Result = d.Result.RawMessage
	}
	return diag
}

var _ DiagnosticService = (*diagnosticService)(nil)
