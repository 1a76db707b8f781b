package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fixlens/fixlens/internal/domain"
	"github.com/fixlens/fixlens/internal/repository"
	"github.com/google/uuid"
)

func testServiceLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubEntitlements satisfies EntitlementService with canned answers.
type stubEntitlements struct {
	checkSubmissionErr error
	checkCapacityErr   error
}

func (s *stubEntitlements) Evaluate(ctx context.Context, userID uuid.UUID, resource domain.ResourceType) (*domain.Entitlement, error) {
	return &domain.Entitlement{Resource: resource}, nil
}

func (s *stubEntitlements) CheckSubmission(ctx context.Context, userID uuid.UUID, resource domain.ResourceType) error {
	return s.checkSubmissionErr
}

func (s *stubEntitlements) CheckPropertyCapacity(ctx context.Context, userID uuid.UUID) error {
	return s.checkCapacityErr
}

func (s *stubEntitlements) GetUsageSummary(ctx context.Context, userID uuid.UUID) (*domain.UsageSummary, error) {
	return &domain.UsageSummary{}, nil
}

var userRowColumns = []string{
	"id", "email", "password_hash", "name", "stripe_customer_id",
	"stripe_subscription_id", "tier", "subscription_status", "period_start",
	"period_end", "renewal_reference", "created_at", "updated_at",
}

// mockUserRow builds a users row in scan order for sqlmock.
func mockUserRow(id uuid.UUID, tier domain.Tier, status domain.SubscriptionStatus, subscriptionID string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(userRowColumns).AddRow(
		id, "owner@example.com", "x", "Owner", "cus_test",
		subscriptionID, tier.String(), string(status), now.AddDate(0, 0, -1),
		now.AddDate(0, 0, 29), "", now, now,
	)
}

func newMockPropertyService(t *testing.T, ent EntitlementService) (PropertyService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewPropertyService(db, repository.New(db), ent, testServiceLogger()), mock
}

// A slot consumed between the advisory check and the insert must be caught
// by the re-count under the user row lock, not create an excess property.
func TestPropertyCreate_RecountsUnderLock(t *testing.T) {
	userID := uuid.New()
	svc, mock := newMockPropertyService(t, &stubEntitlements{})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(userID).
		WillReturnRows(mockUserRow(userID, domain.TierFree, domain.SubscriptionStatusActive, ""))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM properties")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), domain.CreatePropertyParams{
		UserID: userID,
		Label:  "Garage unit",
	})
	if domain.ErrorCode(err) != domain.EQUOTA {
		t.Fatalf("expected EQUOTA, got %v", err)
	}

	var qerr *domain.QuotaError
	if !errors.As(err, &qerr) {
		t.Fatal("expected a QuotaError")
	}
	if qerr.Used != 1 || qerr.Limit != 1 {
		t.Errorf("expected used=1 limit=1, got used=%d limit=%d", qerr.Used, qerr.Limit)
	}
	if qerr.PeriodEnd != nil {
		t.Error("property capacity has no period reset")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPropertyCreate_InsertsInsideTransaction(t *testing.T) {
	userID := uuid.New()
	propertyID := uuid.New()
	svc, mock := newMockPropertyService(t, &stubEntitlements{})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(userID).
		WillReturnRows(mockUserRow(userID, domain.TierPro, domain.SubscriptionStatusActive, "sub_test"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM properties")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO properties").
		WithArgs(userID, "Basement flat", "12 Canal St").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "label", "address", "created_at"}).
			AddRow(propertyID, userID, "Basement flat", "12 Canal St", time.Now().UTC()))
	mock.ExpectCommit()

	property, err := svc.Create(context.Background(), domain.CreatePropertyParams{
		UserID:  userID,
		Label:   "  Basement flat  ",
		Address: "12 Canal St",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if property.ID != propertyID {
		t.Errorf("expected property %s, got %s", propertyID, property.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// An advisory rejection must short-circuit before any transaction starts.
func TestPropertyCreate_AdvisoryRejectionSkipsTransaction(t *testing.T) {
	userID := uuid.New()
	wantErr := domain.QuotaExceeded("entitlement.check_property_capacity",
		domain.ResourceProperty, domain.TierFree, 1, 1, nil)
	svc, mock := newMockPropertyService(t, &stubEntitlements{checkCapacityErr: wantErr})

	_, err := svc.Create(context.Background(), domain.CreatePropertyParams{
		UserID: userID,
		Label:  "Garage unit",
	})
	if domain.ErrorCode(err) != domain.EQUOTA {
		t.Fatalf("expected EQUOTA, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no database activity expected: %v", err)
	}
}
