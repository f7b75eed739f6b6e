package service

import (
	"context"
	"fmt"
	"time"

	"kartis/internal/apperrors"
	"kartis/internal/models"
	"kartis/internal/phone"
	"kartis/internal/repository"
)

// BanService manages per-school registration bans.
type BanService struct {
	repos *repository.Repositories
}

// Create adds a ban for the principal's school. Exactly one termination mode
// must be supplied.
func (s *BanService) Create(ctx context.Context, principal models.AdminPrincipal, schoolID string, req *models.CreateBanRequest) (*models.UserBan, error) {
	if !principal.CanAccessSchool(schoolID) {
		return nil, fmt.Errorf("%w: school belongs to another admin", apperrors.ErrForbidden)
	}

	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}

	ban := &models.UserBan{
		SchoolID:         schoolID,
		PhoneNumber:      normalized,
		BannedGamesCount: req.GamesCount,
	}
	if req.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("%w: expires_at must be RFC 3339", apperrors.ErrValidation)
		}
		ban.ExpiresAt = &expiresAt
	}
	if req.Reason != "" {
		ban.Reason = &req.Reason
	}

	if err := s.repos.Bans.Create(ctx, ban); err != nil {
		return nil, err
	}
	return ban, nil
}

func (s *BanService) List(ctx context.Context, principal models.AdminPrincipal, schoolID string) ([]models.UserBan, error) {
	if !principal.CanAccessSchool(schoolID) {
		return nil, fmt.Errorf("%w: school belongs to another admin", apperrors.ErrForbidden)
	}
	return s.repos.Bans.ListBySchool(ctx, schoolID)
}

func (s *BanService) Lift(ctx context.Context, principal models.AdminPrincipal, schoolID, banID string) error {
	if !principal.CanAccessSchool(schoolID) {
		return fmt.Errorf("%w: school belongs to another admin", apperrors.ErrForbidden)
	}
	return s.repos.Bans.Lift(ctx, schoolID, banID)
}
