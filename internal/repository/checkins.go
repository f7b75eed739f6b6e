package repository

import (
	"context"
	"database/sql"
	"fmt"

	"kartis/internal/apperrors"
	"kartis/internal/database"
	"kartis/internal/models"
)

type CheckInRepository struct {
	db *database.DB
}

func NewCheckInRepository(db *database.DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

const checkInColumns = `id, registration_id, checked_in_at, undone_at, is_late`

func scanCheckIn(row interface{ Scan(...any) error }) (*models.CheckIn, error) {
	ci := &models.CheckIn{}
	var undoneAt sql.NullTime

	err := row.Scan(&ci.ID, &ci.RegistrationID, &ci.CheckedInAt, &undoneAt, &ci.IsLate)
	if err != nil {
		return nil, err
	}
	if undoneAt.Valid {
		t := undoneAt.Time
		ci.UndoneAt = &t
	}
	return ci, nil
}

// Create records arrival. A repeated check-in for the same registration hits
// the UNIQUE constraint and maps to ErrDuplicate.
func (r *CheckInRepository) Create(ctx context.Context, registrationID string, isLate bool) (*models.CheckIn, error) {
	query := `
		INSERT INTO check_ins (registration_id, is_late)
		VALUES ($1, $2)
		RETURNING ` + checkInColumns

	ci, err := scanCheckIn(r.db.QueryRowContext(ctx, query, registrationID, isLate))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: registration already checked in", apperrors.ErrDuplicate)
		}
		return nil, err
	}
	return ci, nil
}

// Undo marks a check-in undone without deleting the row, so the original
// arrival time survives mistakes.
func (r *CheckInRepository) Undo(ctx context.Context, registrationID string) (*models.CheckIn, error) {
	query := `
		UPDATE check_ins SET undone_at = NOW()
		WHERE registration_id = $1 AND undone_at IS NULL
		RETURNING ` + checkInColumns

	ci, err := scanCheckIn(r.db.QueryRowContext(ctx, query, registrationID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no active check-in for registration %s", apperrors.ErrNotFound, registrationID)
	}
	return ci, err
}

// Reinstate clears the undone mark after an accidental undo. The row is
// reused; checked_in_at keeps the first arrival time.
func (r *CheckInRepository) Reinstate(ctx context.Context, registrationID string, isLate bool) (*models.CheckIn, error) {
	query := `
		UPDATE check_ins SET undone_at = NULL, is_late = $2
		WHERE registration_id = $1
		RETURNING ` + checkInColumns

	ci, err := scanCheckIn(r.db.QueryRowContext(ctx, query, registrationID, isLate))
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	return ci, err
}

// GetByRegistration returns the check-in row for a registration, undone or
// not, or nil.
func (r *CheckInRepository) GetByRegistration(ctx context.Context, registrationID string) (*models.CheckIn, error) {
	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE registration_id = $1`

	ci, err := scanCheckIn(r.db.QueryRowContext(ctx, query, registrationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ci, err
}

// Stats aggregates attendance for an event's confirmed registrations.
func (r *CheckInRepository) Stats(ctx context.Context, eventID string) (*models.CheckInStatsResponse, error) {
	query := `
		SELECT
			COUNT(*) AS confirmed,
			COUNT(ci.id) FILTER (WHERE ci.undone_at IS NULL) AS checked_in,
			COUNT(ci.id) FILTER (WHERE ci.undone_at IS NULL AND ci.is_late) AS late
		FROM registrations r
		LEFT JOIN check_ins ci ON ci.registration_id = r.id
		WHERE r.event_id = $1 AND r.status = $2`

	stats := &models.CheckInStatsResponse{}
	err := r.db.QueryRowContext(ctx, query, eventID, models.StatusConfirmed).Scan(
		&stats.Confirmed, &stats.CheckedIn, &stats.Late)
	if err != nil {
		return nil, err
	}
	stats.NotArrived = stats.Confirmed - stats.CheckedIn
	return stats, nil
}
