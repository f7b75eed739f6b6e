package models

import (
	"encoding/json"
	"time"
)

// Event types.
const (
	EventCapacityBased = "CAPACITY_BASED"
	EventTableBased    = "TABLE_BASED"
)

// Event statuses.
const (
	EventOpen      = "OPEN"
	EventClosed    = "CLOSED"
	EventCompleted = "COMPLETED"
)

// Registration statuses. CANCELLED is terminal: a cancelled registration
// never transitions again.
const (
	StatusConfirmed = "CONFIRMED"
	StatusWaitlist  = "WAITLIST"
	StatusCancelled = "CANCELLED"
)

// Table statuses.
const (
	TableAvailable = "AVAILABLE"
	TableReserved  = "RESERVED"
	TableInactive  = "INACTIVE"
)

// Cancellation actors.
const (
	CancelledByCustomer = "CUSTOMER"
	CancelledByAdmin    = "ADMIN"
)

// Admin roles.
const (
	RoleAdmin      = "ADMIN"
	RoleOwner      = "OWNER"
	RoleSuperAdmin = "SUPER_ADMIN"
)

type Event struct {
	ID                        string     `json:"id"`
	SchoolID                  string     `json:"school_id"`
	Title                     string     `json:"title"`
	EventType                 string     `json:"event_type"`
	Status                    string     `json:"status"`
	Capacity                  int        `json:"capacity"`
	SpotsReserved             int        `json:"spots_reserved"`
	MaxSpotsPerPerson         int        `json:"max_spots_per_person"`
	CancellationDeadlineHours int        `json:"cancellation_deadline_hours"`
	CheckInToken              *string    `json:"-"`
	RequiredFields            []string   `json:"required_fields"`
	StartAt                   time.Time  `json:"start_at"`
	EndAt                     *time.Time `json:"end_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

type Table struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	TableNumber int       `json:"table_number"`
	Capacity    int       `json:"capacity"`
	MinOrder    int       `json:"min_order"`
	Status      string    `json:"status"`
	TableOrder  int       `json:"table_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Registration struct {
	ID                 string          `json:"id"`
	EventID            string          `json:"event_id"`
	PhoneNumber        string          `json:"phone_number"`
	Status             string          `json:"status"`
	SpotsCount         int             `json:"spots_count"`
	GuestsCount        *int            `json:"guests_count,omitempty"`
	WaitlistPriority   *int            `json:"waitlist_priority,omitempty"`
	ConfirmationCode   string          `json:"confirmation_code"`
	CancellationToken  string          `json:"-"`
	AssignedTableID    *string         `json:"assigned_table_id,omitempty"`
	FormData           json.RawMessage `json:"form_data,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy        *string         `json:"cancelled_by,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// UserBan blocks registrations for a phone number within one school.
// Exactly one termination mode applies per row: ExpiresAt set means
// date-based, nil means game-count-based.
type UserBan struct {
	ID               string     `json:"id"`
	SchoolID         string     `json:"school_id"`
	PhoneNumber      string     `json:"phone_number"`
	Active           bool       `json:"active"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	BannedGamesCount int        `json:"banned_games_count"`
	EventsBlocked    int        `json:"events_blocked"`
	Reason           *string    `json:"reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DateBased reports whether the ban terminates by calendar expiry rather
// than by a count of blocked events.
func (b *UserBan) DateBased() bool {
	return b.ExpiresAt != nil
}

type CheckIn struct {
	ID             string     `json:"id"`
	RegistrationID string     `json:"registration_id"`
	CheckedInAt    time.Time  `json:"checked_in_at"`
	UndoneAt       *time.Time `json:"undone_at,omitempty"`
	IsLate         bool       `json:"is_late"`
}

// AdminPrincipal is the already-authenticated admin identity handed to the
// core by the auth collaborator. Non-super principals only reach resources
// of their own school.
type AdminPrincipal struct {
	ID       string
	Role     string
	SchoolID string
}

// CanAccessSchool reports whether the principal may touch resources scoped
// to the given school.
func (p AdminPrincipal) CanAccessSchool(schoolID string) bool {
	if p.Role == RoleSuperAdmin {
		return true
	}
	return p.SchoolID != "" && p.SchoolID == schoolID
}
