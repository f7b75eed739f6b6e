package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kartis/internal/apperrors"
	"kartis/internal/database"
	"kartis/internal/models"
)

type BanRepository struct {
	db *database.DB
}

func NewBanRepository(db *database.DB) *BanRepository {
	return &BanRepository{db: db}
}

const banColumns = `id, school_id, phone_number, active, expires_at, banned_games_count,
	events_blocked, reason, created_at, updated_at`

func scanBan(row interface{ Scan(...any) error }) (*models.UserBan, error) {
	ban := &models.UserBan{}
	var expiresAt sql.NullTime
	var reason sql.NullString

	err := row.Scan(
		&ban.ID,
		&ban.SchoolID,
		&ban.PhoneNumber,
		&ban.Active,
		&expiresAt,
		&ban.BannedGamesCount,
		&ban.EventsBlocked,
		&reason,
		&ban.CreatedAt,
		&ban.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		ban.ExpiresAt = &t
	}
	if reason.Valid {
		ban.Reason = &reason.String
	}
	return ban, nil
}

func (r *BanRepository) Create(ctx context.Context, ban *models.UserBan) error {
	if ban.ExpiresAt == nil && ban.BannedGamesCount <= 0 {
		return fmt.Errorf("%w: ban needs either an expiry date or a games count", apperrors.ErrValidation)
	}
	if ban.ExpiresAt != nil && ban.BannedGamesCount > 0 {
		return fmt.Errorf("%w: ban cannot have both an expiry date and a games count", apperrors.ErrValidation)
	}

	query := `
		INSERT INTO user_bans (school_id, phone_number, active, expires_at, banned_games_count, reason)
		VALUES ($1, $2, TRUE, $3, $4, $5)
		RETURNING id, events_blocked, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		ban.SchoolID,
		ban.PhoneNumber,
		ban.ExpiresAt,
		ban.BannedGamesCount,
		ban.Reason,
	).Scan(&ban.ID, &ban.EventsBlocked, &ban.CreatedAt, &ban.UpdatedAt)
}

// FindActive returns the ban currently blocking a phone number in a school,
// or nil. Date-based bans block until expiry; game-count bans block until
// enough events have passed.
func (r *BanRepository) FindActive(ctx context.Context, schoolID, phone string, now time.Time) (*models.UserBan, error) {
	query := `SELECT ` + banColumns + `
		FROM user_bans
		WHERE school_id = $1 AND phone_number = $2 AND active = TRUE
		  AND (
			(expires_at IS NOT NULL AND expires_at >= $3)
			OR (expires_at IS NULL AND events_blocked < banned_games_count)
		  )
		ORDER BY created_at DESC
		LIMIT 1`

	ban, err := scanBan(r.db.QueryRowContext(ctx, query, schoolID, phone, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ban, err
}

func (r *BanRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.UserBan, error) {
	query := `SELECT ` + banColumns + `
		FROM user_bans WHERE school_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []models.UserBan
	for rows.Next() {
		ban, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		bans = append(bans, *ban)
	}
	return bans, rows.Err()
}

// Lift deactivates a ban early. Keyed on (id, school_id) so a ban can only
// be lifted through its own school.
func (r *BanRepository) Lift(ctx context.Context, schoolID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_bans SET active = FALSE, updated_at = NOW()
		 WHERE id = $1 AND school_id = $2 AND active = TRUE`, id, schoolID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: active ban %s", apperrors.ErrNotFound, id)
	}
	return nil
}

// DeactivateExpired flips date-based bans past their expiry to inactive.
// Returns the number deactivated.
func (r *BanRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_bans SET active = FALSE, updated_at = NOW()
		 WHERE active = TRUE AND expires_at IS NOT NULL AND expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// IncrementForSchool counts a completed event against every active
// game-count ban of the school, deactivating those that reach their count.
func (r *BanRepository) IncrementForSchool(ctx context.Context, schoolID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_bans
		 SET events_blocked = events_blocked + 1,
		     active = (events_blocked + 1 < banned_games_count),
		     updated_at = NOW()
		 WHERE school_id = $1 AND active = TRUE AND expires_at IS NULL`, schoolID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
