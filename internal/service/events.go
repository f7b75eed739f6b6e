package service

import (
	"context"
	"fmt"
	"time"

	"kartis/internal/apperrors"
	"kartis/internal/models"
	"kartis/internal/repository"
	"kartis/internal/token"
)

// EventService manages events: admin CRUD and the public info view.
type EventService struct {
	repos *repository.Repositories
}

const (
	defaultMaxSpotsPerPerson   = 10
	defaultCancelDeadlineHours = 24
)

// Create sets up a new event for the principal's school, minting its
// check-in token.
func (s *EventService) Create(ctx context.Context, principal models.AdminPrincipal, schoolID string, req *models.CreateEventRequest) (*models.Event, error) {
	if !principal.CanAccessSchool(schoolID) {
		return nil, fmt.Errorf("%w: school belongs to another admin", apperrors.ErrForbidden)
	}

	switch req.EventType {
	case models.EventCapacityBased:
		if req.Capacity <= 0 {
			return nil, fmt.Errorf("%w: capacity must be positive", apperrors.ErrValidation)
		}
	case models.EventTableBased:
	default:
		return nil, fmt.Errorf("%w: unknown event type %s", apperrors.ErrValidation, req.EventType)
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return nil, fmt.Errorf("%w: start_at must be RFC 3339", apperrors.ErrValidation)
	}

	event := &models.Event{
		SchoolID:                  schoolID,
		Title:                     req.Title,
		EventType:                 req.EventType,
		Status:                    models.EventOpen,
		Capacity:                  req.Capacity,
		MaxSpotsPerPerson:         req.MaxSpotsPerPerson,
		CancellationDeadlineHours: req.CancellationDeadlineHours,
		RequiredFields:            req.RequiredFields,
		StartAt:                   startAt,
	}
	if event.MaxSpotsPerPerson <= 0 {
		event.MaxSpotsPerPerson = defaultMaxSpotsPerPerson
	}
	if event.CancellationDeadlineHours <= 0 {
		event.CancellationDeadlineHours = defaultCancelDeadlineHours
	}
	if req.EndAt != "" {
		endAt, err := time.Parse(time.RFC3339, req.EndAt)
		if err != nil {
			return nil, fmt.Errorf("%w: end_at must be RFC 3339", apperrors.ErrValidation)
		}
		event.EndAt = &endAt
	}

	checkInToken, err := token.NewCheckInToken()
	if err != nil {
		return nil, err
	}
	event.CheckInToken = &checkInToken

	if err := s.repos.Events.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// GetForAdmin loads an event with school scoping applied.
func (s *EventService) GetForAdmin(ctx context.Context, principal models.AdminPrincipal, eventID string) (*models.Event, error) {
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
	return event, nil
}

// PublicInfo is the registration page view. Spots left is only meaningful
// for capacity-based events.
func (s *EventService) PublicInfo(ctx context.Context, eventID string) (*models.EventInfoResponse, error) {
	event, err := s.repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %s", apperrors.ErrNotFound, eventID)
	}

	resp := &models.EventInfoResponse{
		ID:        event.ID,
		Title:     event.Title,
		EventType: event.EventType,
		Status:    event.Status,
		StartAt:   event.StartAt.UTC().Format(time.RFC3339),
	}
	if event.EventType == models.EventCapacityBased {
		resp.SpotsLeft = event.Capacity - event.SpotsReserved
	}
	return resp, nil
}

// SetStatus opens or closes registration. COMPLETED is set by the sweeper,
// not here.
func (s *EventService) SetStatus(ctx context.Context, principal models.AdminPrincipal, eventID, status string) (*models.Event, error) {
	if status != models.EventOpen && status != models.EventClosed {
		return nil, fmt.Errorf("%w: status must be OPEN or CLOSED", apperrors.ErrValidation)
	}

	event, err := s.GetForAdmin(ctx, principal, eventID)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Events.SetStatus(ctx, event.ID, status); err != nil {
		return nil, err
	}
	event.Status = status
	return event, nil
}
