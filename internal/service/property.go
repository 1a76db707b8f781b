// Package service contains the business logic layer.
//
// This file implements property management. Properties are the one
// capacity-limited resource: the tier's slot count is absolute, compared
// against live rows, and never resets with the billing period.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/google/uuid"
)

// MaxPropertyLabelLength bounds the user-supplied property label.
const MaxPropertyLabelLength = 200

// =============================================================================
// Interface Definition
// =============================================================================

// PropertyService manages a user's registered properties.
type PropertyService interface {
	// Create registers a property if a tier slot is available.
	// Returns domain.EQUOTA when the capacity is reached.
	Create(ctx context.Context, params domain.CreatePropertyParams) (*domain.Property, error)

	// GetByID retrieves a property owned by the user.
	GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Property, error)

	// List returns the user's properties, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]domain.Property, error)

	// Delete removes a property, freeing its capacity slot.
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type propertyService struct {
	db           *sql.DB
	queries      *repository.Queries
	entitlements EntitlementService
	logger       *slog.Logger
	now          func() time.Time
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(db *sql.DB, queries *repository.Queries, entitlements EntitlementService, logger *slog.Logger) PropertyService {
	return &propertyService{
		db:           db,
		queries:      queries,
		entitlements: entitlements,
		logger:       logger,
		now:          time.Now,
	}
}

// Create registers a property if a tier slot is available. The advisory
// check rejects cheaply; the binding decision is the re-count under the
// user row lock, so concurrent creates cannot race past the capacity.
func (s *propertyService) Create(ctx context.Context, params domain.CreatePropertyParams) (*domain.Property, error) {
	const op = "PropertyService.Create"

	params.Label = strings.TrimSpace(params.Label)
	params.Address = strings.TrimSpace(params.Address)

	if params.Label == "" {
		return nil, domain.Invalid(op, "Label is required")
	}
	if len(params.Label) > MaxPropertyLabelLength {
		return nil, domain.Invalid(op, "Label is too long")
	}

	if err := s.entitlements.CheckPropertyCapacity(ctx, params.UserID); err != nil {
		return nil, err
	}

	property, err := s.createLocked(ctx, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("property created", "property_id", property.ID, "user_id", params.UserID)
	return property, nil
}

// createLocked inserts the property in one transaction: the user row lock
// serializes concurrent creates, and the count taken under the lock is the
// one the capacity decision binds to.
func (s *propertyService) createLocked(ctx context.Context, params domain.CreatePropertyParams) (*domain.Property, error) {
	const op = "PropertyService.Create"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create property")
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	userRow, err := qtx.GetUserByIDForUpdate(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", params.UserID.String())
		}
		return nil, domain.Internal(err, op, "Failed to create property")
	}
	user := userFromRow(userRow)

	tier := user.EffectiveTier(s.now())
	capacity := domain.PropertyCapacity(tier)

	used, err := qtx.CountProperties(ctx, params.UserID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to count properties")
	}

	// A concurrent create can have consumed the last slot between the
	// advisory check and the lock.
	if used >= capacity {
		return nil, domain.QuotaExceeded(op, domain.ResourceProperty, tier, used, capacity, nil)
	}

	row, err := qtx.CreateProperty(ctx, repository.CreatePropertyParams{
		UserID:  params.UserID,
		Label:   params.Label,
		Address: params.Address,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create property")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "Failed to create property")
	}

	return propertyFromRow(row), nil
}

// GetByID retrieves a property owned by the user.
func (s *propertyService) GetByID(ctx context.Context, id, userID uuid.UUID) (*domain.Property, error) {
	const op = "PropertyService.GetByID"

	row, err := s.queries.GetPropertyByIDAndUserID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "property", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve property")
	}
	return propertyFromRow(row), nil
}

// List returns the user's properties, newest first.
func (s *propertyService) List(ctx context.Context, userID uuid.UUID) ([]domain.Property, error) {
	const op = "PropertyService.List"

	rows, err := s.queries.ListPropertiesByUserID(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list properties")
	}

	properties := make([]domain.Property, 0, len(rows))
	for _, row := range rows {
		properties = append(properties, *propertyFromRow(row))
	}
	return properties, nil
}

// Delete removes a property, freeing its capacity slot.
func (s *propertyService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	const op = "PropertyService.Delete"

	if err := s.queries.DeleteProperty(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "property", id.String())
		}
		return domain.Internal(err, op, "Failed to delete property")
	}

	s.logger.Info("property deleted", "property_id", id, "user_id", userID)
	return nil
}

func propertyFromRow(p repository.Property) *domain.Property {
	return &domain.Property{
		ID:        p.ID,
		UserID:    p.UserID,
		Label:     p.Label,
		Address:   p.Address,
		CreatedAt: p.CreatedAt,
	}
}

var _ PropertyService = (*propertyService)(nil)
