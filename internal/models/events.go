package models

import "time"

// NATS subjects for registration lifecycle events. The notification
// collaborator subscribes to these and turns them into messages; this
// service never formats or sends customer-facing text.
const (
	SubjectRegistrationConfirmed  = "registration.confirmed"
	SubjectRegistrationWaitlisted = "registration.waitlisted"
	SubjectRegistrationCancelled  = "registration.cancelled"
	SubjectRegistrationPromoted   = "registration.promoted"
)

// RegistrationEvent is the payload published for confirmed, waitlisted and
// promoted registrations.
type RegistrationEvent struct {
	RegistrationID    string    `json:"registration_id"`
	EventID           string    `json:"event_id"`
	Status            string    `json:"status"`
	ConfirmationCode  string    `json:"confirmation_code"`
	CancellationToken string    `json:"cancellation_token"`
	Timestamp         time.Time `json:"timestamp"`
}

// RegistrationCancelledEvent is published when a registration is cancelled.
type RegistrationCancelledEvent struct {
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	CancelledBy    string    `json:"cancelled_by"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
