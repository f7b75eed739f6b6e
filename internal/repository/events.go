package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"kartis/internal/apperrors"
	"kartis/internal/database"
	"kartis/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, school_id, title, event_type, status, capacity, spots_reserved,
	max_spots_per_person, cancellation_deadline_hours, check_in_token, required_fields,
	start_at, end_at, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*models.Event, error) {
	event := &models.Event{}
	var checkInToken sql.NullString
	var endAt sql.NullTime

	err := row.Scan(
		&event.ID,
		&event.SchoolID,
		&event.Title,
		&event.EventType,
		&event.Status,
		&event.Capacity,
		&event.SpotsReserved,
		&event.MaxSpotsPerPerson,
		&event.CancellationDeadlineHours,
		&checkInToken,
		pq.Array(&event.RequiredFields),
		&event.StartAt,
		&endAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if checkInToken.Valid {
		event.CheckInToken = &checkInToken.String
	}
	if endAt.Valid {
		t := endAt.Time
		event.EndAt = &t
	}
	return event, nil
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (school_id, title, event_type, status, capacity, max_spots_per_person,
			cancellation_deadline_hours, check_in_token, required_fields, start_at, end_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, spots_reserved, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		event.SchoolID,
		event.Title,
		event.EventType,
		event.Status,
		event.Capacity,
		event.MaxSpotsPerPerson,
		event.CancellationDeadlineHours,
		event.CheckInToken,
		pq.Array(event.RequiredFields),
		event.StartAt,
		event.EndAt,
	).Scan(&event.ID, &event.SpotsReserved, &event.CreatedAt, &event.UpdatedAt)
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return event, err
}

// getEventTx re-reads the event row inside an open transaction. Under
// SERIALIZABLE the read itself joins the transaction's read set; any
// concurrent writer of this row forces one side to abort.
func getEventTx(ctx context.Context, tx *sql.Tx, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return event, err
}

// GetByCheckInToken resolves an event from its shareable check-in token.
func (r *EventRepository) GetByCheckInToken(ctx context.Context, eventID, token string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND check_in_token = $2`

	event, err := scanEvent(r.db.QueryRowContext(ctx, query, eventID, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return event, err
}

// ListEndedUncompleted returns events whose end time has passed but whose
// status is not yet COMPLETED. The sweeper marks them completed and runs
// the ban counter hook for each.
func (r *EventRepository) ListEndedUncompleted(ctx context.Context, now time.Time) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE end_at IS NOT NULL AND end_at < $1 AND status <> $2
		ORDER BY end_at ASC`

	rows, err := r.db.QueryContext(ctx, query, now, models.EventCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// SetStatus flips registration availability between OPEN and CLOSED.
func (r *EventRepository) SetStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: event %s", apperrors.ErrNotFound, id)
	}
	return nil
}

func (r *EventRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `UPDATE events SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, models.EventCompleted, id)
	return err
}

// ListIDs returns the IDs of all events, oldest first. Used by the
// all-events repair sweep.
func (r *EventRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM events ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateSchool exists for fixtures and the onboarding flow; schools are
// otherwise managed by the admin collaborator.
func (r *EventRepository) CreateSchool(ctx context.Context, name, slug string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO schools (name, slug) VALUES ($1, $2) RETURNING id`,
		name, slug,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create school: %w", err)
	}
	return id, nil
}
