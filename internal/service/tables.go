package service

import (
	"context"
	"fmt"

	"kartis/internal/apperrors"
	"kartis/internal/models"
	"kartis/internal/repository"
)

// TableService manages an event's table layout.
type TableService struct {
	repos *repository.Repositories
}

// scopedEvent loads the event and enforces school access.
func (s *TableService) scopedEvent(ctx context.Context, principal models.AdminPrincipal, eventID string) (*models.Event, error) {
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
	if event.EventType != models.EventTableBased {
		return nil, fmt.Errorf("%w: event is not table based", apperrors.ErrValidation)
	}
	return event, nil
}

func (s *TableService) Create(ctx context.Context, principal models.AdminPrincipal, eventID string, req *models.CreateTableRequest) (*models.Table, error) {
	if _, err := s.scopedEvent(ctx, principal, eventID); err != nil {
		return nil, err
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", apperrors.ErrValidation)
	}
	minOrder := req.MinOrder
	if minOrder <= 0 {
		minOrder = 1
	}
	if minOrder > req.Capacity {
		return nil, fmt.Errorf("%w: min_order cannot exceed capacity", apperrors.ErrValidation)
	}

	table := &models.Table{
		EventID:     eventID,
		TableNumber: req.TableNumber,
		Capacity:    req.Capacity,
		MinOrder:    minOrder,
		Status:      models.TableAvailable,
		TableOrder:  req.TableOrder,
	}
	if err := s.repos.Tables.Create(ctx, table); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *TableService) List(ctx context.Context, principal models.AdminPrincipal, eventID string) ([]models.Table, error) {
	if _, err := s.scopedEvent(ctx, principal, eventID); err != nil {
		return nil, err
	}
	return s.repos.Tables.ListByEvent(ctx, eventID)
}

func (s *TableService) Update(ctx context.Context, principal models.AdminPrincipal, eventID, tableID string, req *models.UpdateTableRequest) (*models.Table, error) {
	if _, err := s.scopedEvent(ctx, principal, eventID); err != nil {
		return nil, err
	}
	if req.Status != nil {
		switch *req.Status {
		case models.TableAvailable, models.TableInactive:
		default:
			return nil, fmt.Errorf("%w: status can only be set to AVAILABLE or INACTIVE", apperrors.ErrValidation)
		}
	}
	return s.repos.Tables.Update(ctx, eventID, tableID, req)
}

func (s *TableService) Delete(ctx context.Context, principal models.AdminPrincipal, eventID, tableID string) error {
	if _, err := s.scopedEvent(ctx, principal, eventID); err != nil {
		return err
	}
	return s.repos.Tables.Delete(ctx, eventID, tableID)
}

func (s *TableService) BulkDelete(ctx context.Context, principal models.AdminPrincipal, eventID string, ids []string) (int64, error) {
	if _, err := s.scopedEvent(ctx, principal, eventID); err != nil {
		return 0, err
	}
	return s.repos.Tables.BulkDelete(ctx, eventID, ids)
}

func (s *TableService) Reorder(ctx context.Context, principal models.AdminPrincipal, eventID string, ids []string) error {
	if _, err := s.scopedEvent(ctx, principal, eventID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: table_ids must not be empty", apperrors.ErrValidation)
	}
	return s.repos.Tables.Reorder(ctx, eventID, ids)
}

func (s *TableService) Duplicate(ctx context.Context, principal models.AdminPrincipal, eventID, tableID string) (*models.Table, error) {
	if _, err := s.scopedEvent(ctx, principal, eventID); err != nil {
		return nil, err
	}
	return s.repos.Tables.Duplicate(ctx, eventID, tableID)
}
