package domain

import (
	"time"

	"github.com/google/uuid"
)

// Property is a dwelling or unit a user runs diagnostics against. The
// number of active properties is compared directly against the tier's
// property capacity; the count never resets with the billing period, and
// upgrading the tier raises the cap for existing properties immediately.
type Property struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Label     string
	Address   string
	CreatedAt time.Time
}

// CreatePropertyParams contains the validated parameters for adding a property.
type CreatePropertyParams struct {
	UserID  uuid.UUID
	Label   string
	Address string
}

// AuditEvent records an administrative action, such as a kill switch
// toggle (actor, timestamp, new value).
type AuditEvent struct {
	ID        uuid.UUID
	ActorID   uuid.UUID
	Action    string
	Detail    string
	CreatedAt time.Time
}

// KillSwitchStatus is the admin view of the submission gate.
type KillSwitchStatus struct {
	SubmissionsEnabled bool
	ChangedAt          *time.Time
	ChangedBy          uuid.UUID
	Reason             string
}
