package domain

import (
	"errors"
	"fmt"
	"time"
)

// Application error codes
const (
	EINVALID      = "invalid"       // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized"  // Authentication required
	EFORBIDDEN    = "forbidden"     // Permission denied
	ENOTFOUND     = "not_found"     // Resource not found
	ECONFLICT     = "conflict"      // Resource conflict (e.g., duplicate)
	EGONE         = "gone"          // Resource no longer available
	ETOOLARGE     = "too_large"     // Request entity too large
	ERATELIMIT    = "rate_limit"    // Rate limit exceeded
	EINTERNAL     = "internal"      // Internal server error
	ENOTIMPL      = "not_impl"      // Not implemented
	EPAYMENT      = "payment"       // Payment required
	ELOCKED       = "locked"        // Feature not included in subscription tier
	EQUOTA        = "limit_reached" // Period usage limit exhausted
	EDISABLED     = "disabled"      // Feature disabled platform-wide
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "user.create")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe.Code
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe.Error()
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
	}
}

// ServiceDisabled creates an error for the admin kill switch.
// It always reads identically to callers regardless of tier or quota state.
func ServiceDisabled(op string) *Error {
	return &Error{
		Code:    EDISABLED,
		Op:      op,
		Message: "Diagnostics are temporarily disabled. Please try again later.",
	}
}

// =============================================================================
// Quota Errors
// =============================================================================

// QuotaError reports a metered-feature rejection together with the numbers
// the client needs for messaging (used, limit, tier, reset timing).
//
// Code is ELOCKED when the tier does not include the feature at all
// (limit == 0), and EQUOTA when the period allowance is exhausted. A commit
// that loses a concurrency race is reported as EQUOTA as well; callers
// cannot distinguish it from an ordinary limit rejection.
type QuotaError struct {
	Code      string
	Op        string
	Resource  ResourceType
	Tier      Tier
	Used      int64
	Limit     int64
	PeriodEnd *time.Time // when the allowance resets; nil for capacity limits
}

func (e *QuotaError) Error() string {
	if e.Code == ELOCKED {
		return fmt.Sprintf("%s is not included in the %s plan", e.Resource, e.Tier)
	}
	return fmt.Sprintf("%s limit reached (%d of %d used)", e.Resource, e.Used, e.Limit)
}

// FeatureLocked creates a QuotaError for a tier that does not include the
// resource type at all.
func FeatureLocked(op string, resource ResourceType, tier Tier) *QuotaError {
	return &QuotaError{
		Code:     ELOCKED,
		Op:       op,
		Resource: resource,
		Tier:     tier,
	}
}

// QuotaExceeded creates a QuotaError for an exhausted period allowance.
func QuotaExceeded(op string, resource ResourceType, tier Tier, used, limit int64, periodEnd *time.Time) *QuotaError {
	return &QuotaError{
		Code:      EQUOTA,
		Op:        op,
		Resource:  resource,
		Tier:      tier,
		Used:      used,
		Limit:     limit,
		PeriodEnd: periodEnd,
	}
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}

// AddFieldError adds a field error to an existing validation error.
// If err is not a ValidationError, returns a new one.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return NewValidationError("", field, message)
}
