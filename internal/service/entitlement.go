// Package service contains the business logic layer.
//
// This file implements the entitlement evaluator: the read-side quota
// checks backed by the catalog and the usage ledger. Evaluation is always
// advisory; only the diagnostic commit path makes a decision binding, by
// re-counting inside a transaction that holds the user row lock.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService defines quota evaluation operations.
type EntitlementService interface {
	// Evaluate returns the entitlement decision for one resource type.
	// Locked (zero allowance) takes precedence over at-limit.
	Evaluate(ctx context.Context, userID uuid.UUID, resource domain.ResourceType) (*domain.Entitlement, error)

	// CheckSubmission returns nil when the user may submit a diagnostic of
	// the given resource type, or a QuotaError describing why not.
	CheckSubmission(ctx context.Context, userID uuid.UUID, resource domain.ResourceType) error

	// CheckPropertyCapacity returns nil when the user may register another
	// property within the tier's absolute capacity.
	CheckPropertyCapacity(ctx context.Context, userID uuid.UUID) error

	// GetUsageSummary returns per-resource usage across all resource types
	// for the current billing period.
	GetUsageSummary(ctx context.Context, userID uuid.UUID) (*domain.UsageSummary, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	queries *repository.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(queries *repository.Queries, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		queries: queries,
		logger:  logger,
		now:     time.Now,
	}
}

// Evaluate returns the entitlement decision for one resource type.
func (s *entitlementService) Evaluate(ctx context.Context, userID uuid.UUID, resource domain.ResourceType) (*domain.Entitlement, error) {
	const op = "entitlement.evaluate"

	if !resource.IsValid() {
		return nil, domain.Invalid(op, "unknown resource type: "+resource.String())
	}

	user, err := s.getUser(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tier := user.EffectiveTier(now)

	if resource == domain.ResourceProperty {
		return s.evaluateProperty(ctx, op, user, tier)
	}

	period := domain.CurrentPeriod(user.SubscriptionPeriod(), now)
	limit := domain.Limit(tier, resource)

	// A zero allowance means the plan does not include the feature at all.
	// No ledger query is needed; the answer is static for the tier.
	if limit == 0 {
		ent := domain.NewEntitlement(resource, 0, 0, &period.End)
		return &ent, nil
	}

	used, err := s.queries.CountUsageEvents(ctx, repository.CountUsageEventsParams{
		UserID:       userID,
		ResourceType: resource.String(),
		PeriodStart:  period.Start,
		PeriodEnd:    period.End,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count usage events")
	}

	ent := domain.NewEntitlement(resource, used, limit, &period.End)
	return &ent, nil
}

// evaluateProperty handles the absolute-capacity resource. It counts live
// rows rather than ledger events, so deleting a property frees a slot.
func (s *entitlementService) evaluateProperty(ctx context.Context, op string, user *domain.User, tier domain.Tier) (*domain.Entitlement, error) {
	capacity := domain.PropertyCapacity(tier)

	used, err := s.queries.CountProperties(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count properties")
	}

	ent := domain.NewEntitlement(domain.ResourceProperty, used, capacity, nil)
	return &ent, nil
}

// CheckSubmission returns nil when the user may submit a diagnostic.
func (s *entitlementService) CheckSubmission(ctx context.Context, userID uuid.UUID, resource domain.ResourceType) error {
	const op = "entitlement.check_submission"

	if !resource.IsMetered() {
		return domain.Invalid(op, "resource type is not metered: "+resource.String())
	}

	user, err := s.getUser(ctx, op, userID)
	if err != nil {
		return err
	}

	now := s.now()
	tier := user.EffectiveTier(now)
	period := domain.CurrentPeriod(user.SubscriptionPeriod(), now)
	limit := domain.Limit(tier, resource)

	if limit == 0 {
		return domain.FeatureLocked(op, resource, tier)
	}

	used, err := s.queries.CountUsageEvents(ctx, repository.CountUsageEventsParams{
		UserID:       userID,
		ResourceType: resource.String(),
		PeriodStart:  period.Start,
		PeriodEnd:    period.End,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to count usage events")
	}

	if used >= limit {
		s.logger.Info("Submission quota exhausted",
			"user_id", userID,
			"resource_type", resource,
			"tier", tier,
			"used", used,
			"limit", limit,
		)
		return domain.QuotaExceeded(op, resource, tier, used, limit, &period.End)
	}

	return nil
}

// CheckPropertyCapacity returns nil when a property slot is available.
func (s *entitlementService) CheckPropertyCapacity(ctx context.Context, userID uuid.UUID) error {
	const op = "entitlement.check_property_capacity"

	user, err := s.getUser(ctx, op, userID)
	if err != nil {
		return err
	}

	tier := user.EffectiveTier(s.now())
	capacity := domain.PropertyCapacity(tier)

	used, err := s.queries.CountProperties(ctx, userID)
	if err != nil {
		return domain.Internal(err, op, "failed to count properties")
	}

	if used >= capacity {
		s.logger.Info("Property capacity reached",
			"user_id", userID,
			"tier", tier,
			"used", used,
			"capacity", capacity,
		)
		return domain.QuotaExceeded(op, domain.ResourceProperty, tier, used, capacity, nil)
	}

	return nil
}

// GetUsageSummary returns per-resource usage for the current period.
func (s *entitlementService) GetUsageSummary(ctx context.Context, userID uuid.UUID) (*domain.UsageSummary, error) {
	const op = "entitlement.get_usage_summary"

	user, err := s.getUser(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tier := user.EffectiveTier(now)
	period := domain.CurrentPeriod(user.SubscriptionPeriod(), now)

	summary := &domain.UsageSummary{
		Tier:        tier,
		TierLabel:   tier.DisplayName(),
		Status:      user.Status,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}

	for _, resource := range domain.MeteredResourceTypes {
		ent, err := s.Evaluate(ctx, userID, resource)
		if err != nil {
			return nil, err
		}
		summary.Resources = append(summary.Resources, *ent)
	}

	propertyEnt, err := s.evaluateProperty(ctx, op, user, tier)
	if err != nil {
		return nil, err
	}
	summary.Resources = append(summary.Resources, *propertyEnt)

	return summary, nil
}

func (s *entitlementService) getUser(ctx context.Context, op string, userID uuid.UUID) (*domain.User, error) {
	row, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		return nil, domain.NotFound(op, "user", userID.String())
	}
	return userFromRow(row), nil
}
