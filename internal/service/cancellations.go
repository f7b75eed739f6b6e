package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kartis/internal/apperrors"
	"kartis/internal/messaging"
	"kartis/internal/metrics"
	"kartis/internal/models"
	"kartis/internal/repository"
	"kartis/internal/search"
	"kartis/internal/token"
)

// CancellationService handles both cancellation entry points: the customer
// token flow bound by the event's deadline, and the admin flow that ignores
// it.
type CancellationService struct {
	repos  *repository.Repositories
	tokens *token.Manager
	nats   *messaging.NATSClient
	search *search.Client
}

// CancelWithToken cancels the registration a verified cancellation token
// points at, enforcing the event's cancellation deadline.
func (s *CancellationService) CancelWithToken(ctx context.Context, rawToken, reason string) (*models.Registration, error) {
	claims, err := s.tokens.VerifyCancelToken(rawToken)
	if err != nil {
		return nil, err
	}

	reg, err := s.repos.Registrations.CancelByToken(ctx, claims.EventID, claims.Phone, repository.CancelOptions{
		By:              models.CancelledByCustomer,
		Reason:          reason,
		EnforceDeadline: true,
	})
	if err != nil {
		return nil, err
	}

	s.afterCancel(ctx, reg, models.CancelledByCustomer, reason)
	return reg, nil
}

// AdminCancel cancels any registration of the principal's school, past the
// deadline included.
func (s *CancellationService) AdminCancel(ctx context.Context, principal models.AdminPrincipal, registrationID, reason string) (*models.Registration, error) {
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

	reg, err := s.repos.Registrations.CancelByID(ctx, registrationID, repository.CancelOptions{
		By:              models.CancelledByAdmin,
		Reason:          reason,
		EnforceDeadline: false,
	})
	if err != nil {
		return nil, err
	}

	s.afterCancel(ctx, reg, models.CancelledByAdmin, reason)
	return reg, nil
}

func (s *CancellationService) afterCancel(ctx context.Context, reg *models.Registration, by, reason string) {
	metrics.CancellationsTotal.WithLabelValues(by).Inc()

	if s.nats != nil {
		err := s.nats.Publish(models.SubjectRegistrationCancelled, models.RegistrationCancelledEvent{
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			CancelledBy:    by,
			Reason:         reason,
			Timestamp:      time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("Failed to publish cancellation event",
				"registration_id", reg.ID, "error", err)
		}
	}

	if s.search != nil {
		if err := s.search.DeleteRegistration(ctx, reg.ID); err != nil {
			slog.Warn("Failed to remove registration from search index",
				"registration_id", reg.ID, "error", err)
		}
	}
}
