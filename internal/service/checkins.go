package service

import (
	"context"
	"fmt"
	"time"

	"kartis/internal/apperrors"
	"kartis/internal/models"
	"kartis/internal/repository"
)

// CheckInService powers the shareable check-in page. Access is by the
// event's random check-in token, so door staff never need admin credentials.
type CheckInService struct {
	repos         *repository.Repositories
	lateThreshold time.Duration
}

// resolveEvent validates the check-in token against the event.
func (s *CheckInService) resolveEvent(ctx context.Context, eventID, checkInToken string) (*models.Event, error) {
	if checkInToken == "" {
		return nil, apperrors.ErrInvalidToken
	}
	event, err := s.repos.Events.GetByCheckInToken(ctx, eventID, checkInToken)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperrors.ErrInvalidToken
	}
	return event, nil
}

// CheckIn records arrival for a confirmed registration, found by its
// confirmation code. Arrivals past the late threshold are flagged, not
// rejected.
func (s *CheckInService) CheckIn(ctx context.Context, eventID, checkInToken, confirmationCode string) (*models.CheckIn, error) {
	event, err := s.resolveEvent(ctx, eventID, checkInToken)
	if err != nil {
		return nil, err
	}

	reg, err := s.repos.Registrations.GetByConfirmationCode(ctx, event.ID, confirmationCode)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: no registration with code %s", apperrors.ErrNotFound, confirmationCode)
	}
	if reg.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("%w: registration is %s, not confirmed", apperrors.ErrValidation, reg.Status)
	}

	isLate := time.Now().After(event.StartAt.Add(s.lateThreshold))

	// An undone check-in is reinstated rather than duplicated, keeping the
	// original arrival time.
	existing, err := s.repos.CheckIns.GetByRegistration(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.UndoneAt == nil {
			return nil, fmt.Errorf("%w: registration already checked in", apperrors.ErrDuplicate)
		}
		return s.repos.CheckIns.Reinstate(ctx, reg.ID, isLate)
	}

	return s.repos.CheckIns.Create(ctx, reg.ID, isLate)
}

// Undo reverses a mistaken check-in.
func (s *CheckInService) Undo(ctx context.Context, eventID, checkInToken, confirmationCode string) (*models.CheckIn, error) {
	event, err := s.resolveEvent(ctx, eventID, checkInToken)
	if err != nil {
		return nil, err
	}

	reg, err := s.repos.Registrations.GetByConfirmationCode(ctx, event.ID, confirmationCode)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: no registration with code %s", apperrors.ErrNotFound, confirmationCode)
	}

	return s.repos.CheckIns.Undo(ctx, reg.ID)
}

// Stats summarizes attendance for the check-in page header.
func (s *CheckInService) Stats(ctx context.Context, eventID, checkInToken string) (*models.CheckInStatsResponse, error) {
	event, err := s.resolveEvent(ctx, eventID, checkInToken)
	if err != nil {
		return nil, err
	}
	return s.repos.CheckIns.Stats(ctx, event.ID)
}

// List returns the event's registrations for the check-in roster.
func (s *CheckInService) List(ctx context.Context, eventID, checkInToken string) ([]models.Registration, error) {
	event, err := s.resolveEvent(ctx, eventID, checkInToken)
	if err != nil {
		return nil, err
	}
	return s.repos.Registrations.ListByEvent(ctx, event.ID)
}
