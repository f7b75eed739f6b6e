package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kartis/internal/apperrors"
	"kartis/internal/messaging"
	"kartis/internal/models"
	"kartis/internal/repository"
	"kartis/internal/search"
)

// WaitlistService powers the admin waitlist view and manual promotion.
// Promotion is always an explicit admin action; a cancellation never
// auto-promotes anyone.
type WaitlistService struct {
	repos  *repository.Repositories
	nats   *messaging.NATSClient
	search *search.Client
}

// ListWithMatches returns the event's waitlist in priority order, each entry
// annotated with the currently available tables that could seat it.
func (s *WaitlistService) ListWithMatches(ctx context.Context, principal models.AdminPrincipal, eventID string) ([]models.WaitlistEntry, error) {
	event, err := s.repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %s", apperrors.ErrNotFound, eventID)
	}
	if !principal.CanAccessSchool(event.SchoolID) {
		return nil, fmt.Errorf("%w: event belongs to another school", apperrors.ErrForbidden)
	}

	waitlist, err := s.repos.Registrations.ListWaitlist(ctx, eventID)
	if err != nil {
		return nil, err
	}
	available, err := s.repos.Tables.ListAvailable(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return computeMatches(waitlist, available), nil
}

// computeMatches annotates waitlisted parties with their matching tables.
// Pure: works on the snapshots it is given. The available slice must already
// be in best-fit order; the first match is the best table.
func computeMatches(waitlist []models.Registration, available []models.Table) []models.WaitlistEntry {
	entries := make([]models.WaitlistEntry, 0, len(waitlist))
	for _, reg := range waitlist {
		guests := reg.SpotsCount
		if reg.GuestsCount != nil {
			guests = *reg.GuestsCount
		}

		entry := models.WaitlistEntry{
			RegistrationID:   reg.ID,
			ConfirmationCode: reg.ConfirmationCode,
			PhoneNumber:      reg.PhoneNumber,
			GuestsCount:      guests,
			FormData:         reg.FormData,
		}
		if reg.WaitlistPriority != nil {
			entry.WaitlistPriority = *reg.WaitlistPriority
		}

		for _, table := range available {
			if table.MinOrder <= guests && guests <= table.Capacity {
				entry.MatchingTables = append(entry.MatchingTables, table)
			}
		}
		if len(entry.MatchingTables) > 0 {
			entry.HasMatch = true
			best := entry.MatchingTables[0]
			entry.BestTable = &best
		}
		entries = append(entries, entry)
	}
	return entries
}

// Promote confirms a waitlisted registration onto the chosen table. Force
// overrides the table's minimum order only; capacity is never overridden.
func (s *WaitlistService) Promote(ctx context.Context, principal models.AdminPrincipal, registrationID string, req *models.AssignTableRequest) (*models.Registration, error) {
	existing, err := s.repos.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: registration %s", apperrors.ErrNotFound, registrationID)
	}

	event, err := s.repos.Events.GetByID(ctx, existing.EventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %s", apperrors.ErrNotFound, existing.EventID)
	}
	if !principal.CanAccessSchool(event.SchoolID) {
		return nil, fmt.Errorf("%w: registration belongs to another school", apperrors.ErrForbidden)
	}

	reg, err := s.repos.Registrations.Promote(ctx, registrationID, req.TableID, req.Force)
	if err != nil {
		return nil, err
	}

	if s.nats != nil {
		err := s.nats.Publish(models.SubjectRegistrationPromoted, models.RegistrationEvent{
			RegistrationID:    reg.ID,
			EventID:           reg.EventID,
			Status:            reg.Status,
			ConfirmationCode:  reg.ConfirmationCode,
			CancellationToken: reg.CancellationToken,
			Timestamp:         time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("Failed to publish promotion event", "registration_id", reg.ID, "error", err)
		}
	}

	if s.search != nil {
		doc := &models.RegistrationDoc{
			ID:               reg.ID,
			EventID:          reg.EventID,
			SchoolID:         event.SchoolID,
			PhoneNumber:      reg.PhoneNumber,
			ConfirmationCode: reg.ConfirmationCode,
			Status:           reg.Status,
			CreatedAt:        reg.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := s.search.IndexRegistration(ctx, doc); err != nil {
			slog.Warn("Failed to reindex promoted registration", "registration_id", reg.ID, "error", err)
		}
	}

	return reg, nil
}
