// Package domain contains core business types and interfaces.
//
// This file defines payment transaction types for the tier synchronizer.
// The provider-assigned reference is the idempotency key: verifying the
// same reference twice applies the tier change exactly once.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle of a payment attempt.
type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "initiated"
	TransactionStatusSuccess   TransactionStatus = "success"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// IsValid returns true for a known transaction status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusInitiated, TransactionStatusSuccess, TransactionStatusFailed:
		return true
	default:
		return false
	}
}

// Transaction is a single payment attempt against the external gateway.
type Transaction struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Reference     string // unique, provider-assigned; idempotency key
	TierRequested Tier
	AmountCents   int64
	Status        TransactionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CheckoutResult is returned by checkout initialization.
type CheckoutResult struct {
	CheckoutURL string
	Reference   string
}

// VerifyOutcome is what the payment gateway reports for a reference.
type VerifyOutcome string

const (
	VerifyOutcomeSuccess VerifyOutcome = "success"
	VerifyOutcomeFailed  VerifyOutcome = "failed"
	VerifyOutcomePending VerifyOutcome = "pending"
)

// VerifyResult is the synchronizer's answer for a verify/webhook call. The
// result is safe to return for replays and unknown references alike.
type VerifyResult struct {
	Status VerifyOutcome
}
