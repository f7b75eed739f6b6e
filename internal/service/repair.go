package service

import (
	"context"
	"fmt"
	"log/slog"

	"kartis/internal/apperrors"
	"kartis/internal/metrics"
	"kartis/internal/models"
	"kartis/internal/repository"
)

// RepairService runs the consistency repair job over capacity-based events.
type RepairService struct {
	repos *repository.Repositories
}

// RepairEvent replays one event and returns the corrections made.
func (s *RepairService) RepairEvent(ctx context.Context, principal models.AdminPrincipal, eventID string) (*models.RepairResponse, error) {
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

	fixes, err := s.repos.Registrations.Repair(ctx, eventID)
	if err != nil {
		return nil, err
	}

	metrics.RepairFixesTotal.Add(float64(len(fixes)))
	if len(fixes) > 0 {
		slog.Warn("Repair corrected registrations", "event_id", eventID, "fixes", len(fixes))
	}

	return &models.RepairResponse{EventsChecked: 1, Fixes: fixes}, nil
}

// RepairAll sweeps every event. Only super admins may run it. Per-event
// failures are logged and skipped so one broken event does not stall the
// sweep.
func (s *RepairService) RepairAll(ctx context.Context, principal models.AdminPrincipal) (*models.RepairResponse, error) {
	if principal.Role != models.RoleSuperAdmin {
		return nil, fmt.Errorf("%w: full repair requires super admin", apperrors.ErrForbidden)
	}

	ids, err := s.repos.Events.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.RepairResponse{}
	for _, id := range ids {
		fixes, err := s.repos.Registrations.Repair(ctx, id)
		if err != nil {
			slog.Error("Repair failed for event", "event_id", id, "error", err)
			continue
		}
		resp.EventsChecked++
		resp.Fixes = append(resp.Fixes, fixes...)
	}

	metrics.RepairFixesTotal.Add(float64(len(resp.Fixes)))
	return resp, nil
}
