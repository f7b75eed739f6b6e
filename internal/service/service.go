// Package service holds the business logic between the HTTP handlers and the
// repositories: ban gating, phone normalization, token issuance, allocation
// orchestration, and the best-effort side effects (notification events,
// search indexing, metrics).
package service

import (
	"time"

	"kartis/internal/messaging"
	"kartis/internal/repository"
	"kartis/internal/search"
	"kartis/internal/token"
)

// Services aggregates all services for handler wiring.
type Services struct {
	Events        *EventService
	Tables        *TableService
	Registrations *RegistrationService
	Cancellations *CancellationService
	Waitlist      *WaitlistService
	Bans          *BanService
	CheckIns      *CheckInService
	Repair        *RepairService
}

// Deps carries the external collaborators services depend on. NATS and
// search may be nil; the services degrade to skipping those side effects.
type Deps struct {
	Repos         *repository.Repositories
	Tokens        *token.Manager
	NATS          *messaging.NATSClient
	Search        *search.Client
	LateThreshold time.Duration
}

func NewServices(d Deps) *Services {
	return &Services{
		Events:        &EventService{repos: d.Repos},
		Tables:        &TableService{repos: d.Repos},
		Registrations: &RegistrationService{repos: d.Repos, tokens: d.Tokens, nats: d.NATS, search: d.Search},
		Cancellations: &CancellationService{repos: d.Repos, tokens: d.Tokens, nats: d.NATS, search: d.Search},
		Waitlist:      &WaitlistService{repos: d.Repos, nats: d.NATS, search: d.Search},
		Bans:          &BanService{repos: d.Repos},
		CheckIns:      &CheckInService{repos: d.Repos, lateThreshold: d.LateThreshold},
		Repair:        &RepairService{repos: d.Repos},
	}
}
