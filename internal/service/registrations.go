package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"kartis/internal/apperrors"
	"kartis/internal/messaging"
	"kartis/internal/metrics"
	"kartis/internal/models"
	"kartis/internal/phone"
	"kartis/internal/repository"
	"kartis/internal/search"
	"kartis/internal/token"
)

// RegistrationService runs the public registration flow: ban gate, input
// normalization, token issuance, then the allocation transaction.
type RegistrationService struct {
	repos  *repository.Repositories
	tokens *token.Manager
	nats   *messaging.NATSClient
	search *search.Client
}

// Register handles one registration request against an event. WAITLIST is a
// normal outcome; only validation, bans and infrastructure problems are
// errors.
func (s *RegistrationService) Register(ctx context.Context, eventID string, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	event, err := s.repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("%w: event %s", apperrors.ErrNotFound, eventID)
	}

	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}

	ban, err := s.repos.Bans.FindActive(ctx, event.SchoolID, normalized, time.Now())
	if err != nil {
		return nil, err
	}
	if ban != nil {
		return nil, fmt.Errorf("%w: registration is not allowed for this phone number", apperrors.ErrForbidden)
	}

	if err := validateRequiredFields(event.RequiredFields, req.FormData); err != nil {
		return nil, err
	}

	code, err := NewConfirmationCode()
	if err != nil {
		return nil, err
	}
	cancelToken, err := s.tokens.IssueCancelToken(event.ID, normalized)
	if err != nil {
		return nil, err
	}

	formData, err := json.Marshal(req.FormData)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid form data", apperrors.ErrValidation)
	}

	draft := &models.Registration{
		EventID:           event.ID,
		PhoneNumber:       normalized,
		ConfirmationCode:  code,
		CancellationToken: cancelToken,
		FormData:          formData,
	}

	var reg *models.Registration
	switch event.EventType {
	case models.EventCapacityBased:
		if req.SpotsCount <= 0 {
			return nil, fmt.Errorf("%w: spots_count must be positive", apperrors.ErrValidation)
		}
		draft.SpotsCount = req.SpotsCount
		reg, err = s.repos.Registrations.AllocateCapacity(ctx, draft)
	case models.EventTableBased:
		if req.GuestsCount <= 0 {
			return nil, fmt.Errorf("%w: guests_count must be positive", apperrors.ErrValidation)
		}
		guests := req.GuestsCount
		draft.GuestsCount = &guests
		draft.SpotsCount = guests
		reg, err = s.repos.Registrations.AllocateTable(ctx, draft, guests)
	default:
		return nil, fmt.Errorf("%w: unknown event type %s", apperrors.ErrValidation, event.EventType)
	}
	if err != nil {
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues(reg.Status, event.EventType).Inc()
	s.publishOutcome(reg)
	s.indexRegistration(ctx, event.SchoolID, reg, req.FormData)

	resp := &models.RegisterResponse{
		RegistrationID:   reg.ID,
		Status:           reg.Status,
		ConfirmationCode: reg.ConfirmationCode,
		WaitlistPriority: reg.WaitlistPriority,
	}
	if reg.AssignedTableID != nil {
		table, err := s.repos.Tables.GetByID(ctx, *reg.AssignedTableID)
		if err == nil && table != nil {
			resp.TableNumber = &table.TableNumber
		}
	}
	return resp, nil
}

func validateRequiredFields(required []string, form map[string]string) error {
	for _, field := range required {
		if form[field] == "" {
			return fmt.Errorf("%w: field %q is required", apperrors.ErrValidation, field)
		}
	}
	return nil
}

func (s *RegistrationService) publishOutcome(reg *models.Registration) {
	if s.nats == nil {
		return
	}

	subject := models.SubjectRegistrationConfirmed
	if reg.Status == models.StatusWaitlist {
		subject = models.SubjectRegistrationWaitlisted
	}

	err := s.nats.Publish(subject, models.RegistrationEvent{
		RegistrationID:    reg.ID,
		EventID:           reg.EventID,
		Status:            reg.Status,
		ConfirmationCode:  reg.ConfirmationCode,
		CancellationToken: reg.CancellationToken,
		Timestamp:         time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("Failed to publish registration event",
			"subject", subject, "registration_id", reg.ID, "error", err)
	}
}

func (s *RegistrationService) indexRegistration(ctx context.Context, schoolID string, reg *models.Registration, form map[string]string) {
	if s.search == nil {
		return
	}

	doc := &models.RegistrationDoc{
		ID:               reg.ID,
		EventID:          reg.EventID,
		SchoolID:         schoolID,
		PhoneNumber:      reg.PhoneNumber,
		ConfirmationCode: reg.ConfirmationCode,
		Status:           reg.Status,
		FullName:         form["full_name"],
		CreatedAt:        reg.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := s.search.IndexRegistration(ctx, doc); err != nil {
		slog.Warn("Failed to index registration", "registration_id", reg.ID, "error", err)
	}
}

// Search runs the school-scoped admin registration search.
func (s *RegistrationService) Search(ctx context.Context, principal models.AdminPrincipal, schoolID, query string, page, pageSize int) (*models.SearchResponse, error) {
	if !principal.CanAccessSchool(schoolID) {
		return nil, fmt.Errorf("%w: school belongs to another admin", apperrors.ErrForbidden)
	}
	if s.search == nil {
		return nil, fmt.Errorf("search backend is not configured")
	}
	return s.search.Search(ctx, schoolID, query, page, pageSize)
}

const confirmationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewConfirmationCode generates a 6-character code over an alphabet without
// the lookalike characters 0, O, 1 and I.
func NewConfirmationCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}
	for i, b := range buf {
		buf[i] = confirmationAlphabet[int(b)%len(confirmationAlphabet)]
	}
	return string(buf), nil
}
