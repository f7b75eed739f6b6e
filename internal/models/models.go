package models

import "encoding/json"

// RegisterRequest is the public registration payload. SpotsCount applies to
// capacity-based events, GuestsCount to table-based ones; the handler
// validates whichever the event type requires.
type RegisterRequest struct {
	Phone       string            `json:"phone" binding:"required"`
	SpotsCount  int               `json:"spots_count"`
	GuestsCount int               `json:"guests_count"`
	FormData    map[string]string `json:"form_data"`
}

// RegisterResponse reports the allocation outcome. Status is CONFIRMED or
// WAITLIST; a WAITLIST outcome is a normal result, not an error.
type RegisterResponse struct {
	RegistrationID   string `json:"registration_id"`
	Status           string `json:"status"`
	ConfirmationCode string `json:"confirmation_code"`
	WaitlistPriority *int   `json:"waitlist_priority,omitempty"`
	TableNumber      *int   `json:"table_number,omitempty"`
}

// CreateEventRequest creates an event for a school. Capacity applies to
// capacity-based events; table-based events get their capacity from tables.
type CreateEventRequest struct {
	Title                     string   `json:"title" binding:"required"`
	EventType                 string   `json:"event_type" binding:"required"`
	Capacity                  int      `json:"capacity"`
	MaxSpotsPerPerson         int      `json:"max_spots_per_person"`
	CancellationDeadlineHours int      `json:"cancellation_deadline_hours"`
	RequiredFields            []string `json:"required_fields"`
	StartAt                   string   `json:"start_at" binding:"required"`
	EndAt                     string   `json:"end_at"`
}

// UpdateEventStatusRequest opens or closes registration.
type UpdateEventStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CancelRequest is the customer self-service cancellation payload: the
// signed token from the confirmation message plus an optional reason.
type CancelRequest struct {
	Token  string `json:"token" binding:"required"`
	Reason string `json:"reason"`
}

// AdminCancelRequest carries the optional admin-supplied reason.
type AdminCancelRequest struct {
	Reason string `json:"reason"`
}

// EventInfoResponse is the public view of an event.
type EventInfoResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	EventType string `json:"event_type"`
	Status    string `json:"status"`
	SpotsLeft int    `json:"spots_left,omitempty"`
	StartAt   string `json:"start_at"`
}

// CreateTableRequest creates one table for an event.
type CreateTableRequest struct {
	TableNumber int `json:"table_number" binding:"required"`
	Capacity    int `json:"capacity" binding:"required"`
	MinOrder    int `json:"min_order"`
	TableOrder  int `json:"table_order"`
}

// UpdateTableRequest updates mutable table fields. Nil means unchanged.
type UpdateTableRequest struct {
	Capacity   *int    `json:"capacity"`
	MinOrder   *int    `json:"min_order"`
	TableOrder *int    `json:"table_order"`
	Status     *string `json:"status"`
}

// ReorderTablesRequest assigns new display order, table IDs in order.
type ReorderTablesRequest struct {
	TableIDs []string `json:"table_ids" binding:"required"`
}

// BulkDeleteTablesRequest deletes several tables at once.
type BulkDeleteTablesRequest struct {
	TableIDs []string `json:"table_ids" binding:"required"`
}

// WaitlistEntry is one waitlisted party with its current table matches.
type WaitlistEntry struct {
	RegistrationID   string          `json:"registration_id"`
	ConfirmationCode string          `json:"confirmation_code"`
	PhoneNumber      string          `json:"phone_number"`
	GuestsCount      int             `json:"guests_count"`
	WaitlistPriority int             `json:"waitlist_priority"`
	FormData         json.RawMessage `json:"form_data,omitempty"`
	MatchingTables   []Table         `json:"matching_tables"`
	BestTable        *Table          `json:"best_table,omitempty"`
	HasMatch         bool            `json:"has_match"`
}

// AssignTableRequest promotes a waitlisted registration onto a table.
// Force overrides the minOrder check; capacity is never overridden.
type AssignTableRequest struct {
	TableID string `json:"table_id" binding:"required"`
	Force   bool   `json:"force"`
}

// CreateBanRequest creates a ban in exactly one termination mode:
// ExpiresAt set (date-based) or GamesCount > 0 (game-count-based).
type CreateBanRequest struct {
	Phone      string `json:"phone" binding:"required"`
	ExpiresAt  string `json:"expires_at"`
	GamesCount int    `json:"games_count"`
	Reason     string `json:"reason"`
}

// RepairFix records one correction made by the repair job.
type RepairFix struct {
	RegistrationID   string `json:"registration_id"`
	ConfirmationCode string `json:"confirmation_code"`
	OldStatus        string `json:"old_status"`
	NewStatus        string `json:"new_status"`
}

// RepairResponse summarizes a repair run. Zero fixes is success.
type RepairResponse struct {
	EventsChecked int         `json:"events_checked"`
	Fixes         []RepairFix `json:"fixes"`
}

// CheckInStatsResponse summarizes attendance for one event.
type CheckInStatsResponse struct {
	Confirmed  int `json:"confirmed"`
	CheckedIn  int `json:"checked_in"`
	Late       int `json:"late"`
	NotArrived int `json:"not_arrived"`
}

// SearchResponse is the ES-backed admin registration search result.
type SearchResponse struct {
	Total   int64             `json:"total"`
	Results []RegistrationDoc `json:"results"`
}

// RegistrationDoc is the search index projection of a registration.
type RegistrationDoc struct {
	ID               string `json:"id"`
	EventID          string `json:"event_id"`
	SchoolID         string `json:"school_id"`
	PhoneNumber      string `json:"phone_number"`
	ConfirmationCode string `json:"confirmation_code"`
	Status           string `json:"status"`
	FullName         string `json:"full_name,omitempty"`
	CreatedAt        string `json:"created_at"`
}
