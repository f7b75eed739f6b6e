package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"kartis/internal/apperrors"
	"kartis/internal/capacity"
	"kartis/internal/database"
	"kartis/internal/models"
)

type RegistrationRepository struct {
	db *database.DB
}

func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, event_id, phone_number, status, spots_count, guests_count,
	waitlist_priority, confirmation_code, cancellation_token, assigned_table_id, form_data,
	cancelled_at, cancelled_by, cancellation_reason, created_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }) (*models.Registration, error) {
	reg := &models.Registration{}
	var guestsCount, waitlistPriority sql.NullInt64
	var assignedTable, cancelledBy, cancellationReason sql.NullString
	var cancelledAt sql.NullTime
	var formData []byte

	err := row.Scan(
		&reg.ID,
		&reg.EventID,
		&reg.PhoneNumber,
		&reg.Status,
		&reg.SpotsCount,
		&guestsCount,
		&waitlistPriority,
		&reg.ConfirmationCode,
		&reg.CancellationToken,
		&assignedTable,
		&formData,
		&cancelledAt,
		&cancelledBy,
		&cancellationReason,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if guestsCount.Valid {
		n := int(guestsCount.Int64)
		reg.GuestsCount = &n
	}
	if waitlistPriority.Valid {
		n := int(waitlistPriority.Int64)
		reg.WaitlistPriority = &n
	}
	if assignedTable.Valid {
		reg.AssignedTableID = &assignedTable.String
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		reg.CancelledAt = &t
	}
	if cancelledBy.Valid {
		reg.CancelledBy = &cancelledBy.String
	}
	if cancellationReason.Valid {
		reg.CancellationReason = &cancellationReason.String
	}
	reg.FormData = json.RawMessage(formData)
	return reg, nil
}

// AllocateCapacity runs the capacity-based reservation transaction: re-read
// the counter, apply the capacity decision, and either bump the counter and
// insert CONFIRMED or insert WAITLIST with the next priority, all in one
// SERIALIZABLE transaction. The counter is only ever touched in the same
// transaction that writes the dependent registration row.
//
// Fairness is commit order, not submission order: under contention, whoever
// serializes first wins, and losers are retried by the transaction runner.
func (r *RegistrationRepository) AllocateCapacity(ctx context.Context, draft *models.Registration) (*models.Registration, error) {
	var result *models.Registration

	err := r.db.Serializable(ctx, func(tx *sql.Tx) error {
		event, err := getEventTx(ctx, tx, draft.EventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		if event == nil {
			return fmt.Errorf("%w: event %s", apperrors.ErrNotFound, draft.EventID)
		}
		if event.Status != models.EventOpen {
			return fmt.Errorf("%w: registration is closed", apperrors.ErrValidation)
		}
		if event.EventType != models.EventCapacityBased {
			return fmt.Errorf("%w: event is not capacity based", apperrors.ErrValidation)
		}
		if draft.SpotsCount > event.MaxSpotsPerPerson {
			return fmt.Errorf("%w: maximum %d spots allowed per registration",
				apperrors.ErrValidation, event.MaxSpotsPerPerson)
		}

		if err := ensureNotRegistered(ctx, tx, draft.EventID, draft.PhoneNumber); err != nil {
			return err
		}

		decision, err := capacity.CanRegister(event.SpotsReserved, event.Capacity, draft.SpotsCount)
		if err != nil {
			return err
		}

		if decision.Status == models.StatusConfirmed {
			_, err := tx.ExecContext(ctx,
				`UPDATE events SET spots_reserved = spots_reserved + $1, updated_at = NOW() WHERE id = $2`,
				draft.SpotsCount, event.ID)
			if err != nil {
				return fmt.Errorf("reserve spots: %w", err)
			}
			result, err = insertRegistration(ctx, tx, draft, models.StatusConfirmed, nil, nil)
			return err
		}

		priority, err := nextWaitlistPriority(ctx, tx, draft.EventID)
		if err != nil {
			return err
		}
		result, err = insertRegistration(ctx, tx, draft, models.StatusWaitlist, &priority, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AllocateTable runs the table-based reservation transaction. Candidates are
// AVAILABLE tables whose [min_order, capacity] range contains the guest
// count, smallest capacity first, table order as tie-break. The winner is
// claimed with a conditional AVAILABLE→RESERVED update in the same
// transaction as the registration insert; if no candidate can be claimed the
// party is waitlisted. A guest count no table can ever fit is a valid
// WAITLIST outcome, not an error.
func (r *RegistrationRepository) AllocateTable(ctx context.Context, draft *models.Registration, guestCount int) (*models.Registration, error) {
	if guestCount <= 0 {
		return nil, fmt.Errorf("%w: guest count must be positive", apperrors.ErrValidation)
	}

	var result *models.Registration

	err := r.db.Serializable(ctx, func(tx *sql.Tx) error {
		event, err := getEventTx(ctx, tx, draft.EventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		if event == nil {
			return fmt.Errorf("%w: event %s", apperrors.ErrNotFound, draft.EventID)
		}
		if event.Status != models.EventOpen {
			return fmt.Errorf("%w: registration is closed", apperrors.ErrValidation)
		}
		if event.EventType != models.EventTableBased {
			return fmt.Errorf("%w: event is not table based", apperrors.ErrValidation)
		}

		if err := ensureNotRegistered(ctx, tx, draft.EventID, draft.PhoneNumber); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM tables
			 WHERE event_id = $1 AND status = $2 AND min_order <= $3 AND capacity >= $3
			 ORDER BY capacity ASC, table_order ASC`,
			draft.EventID, models.TableAvailable, guestCount)
		if err != nil {
			return fmt.Errorf("find candidate tables: %w", err)
		}

		var candidates []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			candidates = append(candidates, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, tableID := range candidates {
			res, err := tx.ExecContext(ctx,
				`UPDATE tables SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
				models.TableReserved, tableID, models.TableAvailable)
			if err != nil {
				return fmt.Errorf("reserve table: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 1 {
				result, err = insertRegistration(ctx, tx, draft, models.StatusConfirmed, nil, &tableID)
				return err
			}
		}

		priority, err := nextWaitlistPriority(ctx, tx, draft.EventID)
		if err != nil {
			return err
		}
		result, err = insertRegistration(ctx, tx, draft, models.StatusWaitlist, &priority, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func ensureNotRegistered(ctx context.Context, tx *sql.Tx, eventID, phone string) error {
	var existing int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND phone_number = $2 AND status <> $3`,
		eventID, phone, models.StatusCancelled,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: phone number already registered for this event", apperrors.ErrDuplicate)
	}
	return nil
}

// nextWaitlistPriority yields the next sequential priority for an event.
// MAX+1 over WAITLIST rows keeps the sequence strictly increasing in commit
// order; SERIALIZABLE prevents two transactions from both reading the same
// max and committing.
func nextWaitlistPriority(ctx context.Context, tx *sql.Tx, eventID string) (int, error) {
	var priority int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(waitlist_priority), 0) + 1 FROM registrations
		 WHERE event_id = $1 AND status = $2`,
		eventID, models.StatusWaitlist,
	).Scan(&priority)
	if err != nil {
		return 0, fmt.Errorf("next waitlist priority: %w", err)
	}
	return priority, nil
}

func insertRegistration(ctx context.Context, tx *sql.Tx, draft *models.Registration, status string, priority *int, tableID *string) (*models.Registration, error) {
	formData := draft.FormData
	if len(formData) == 0 {
		formData = json.RawMessage(`{}`)
	}

	row := tx.QueryRowContext(ctx,
		`INSERT INTO registrations (event_id, phone_number, status, spots_count, guests_count,
			waitlist_priority, confirmation_code, cancellation_token, assigned_table_id, form_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+registrationColumns,
		draft.EventID,
		draft.PhoneNumber,
		status,
		draft.SpotsCount,
		draft.GuestsCount,
		priority,
		draft.ConfirmationCode,
		draft.CancellationToken,
		tableID,
		[]byte(formData),
	)

	reg, err := scanRegistration(row)
	if err != nil {
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`

	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return reg, err
}

// GetByConfirmationCode resolves a registration within one event by its
// human-readable confirmation code.
func (r *RegistrationRepository) GetByConfirmationCode(ctx context.Context, eventID, code string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 AND confirmation_code = $2`

	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, eventID, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return reg, err
}

// ListWaitlist returns the WAITLIST rows of an event in priority order.
func (r *RegistrationRepository) ListWaitlist(ctx context.Context, eventID string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations WHERE event_id = $1 AND status = $2
		ORDER BY waitlist_priority ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID, models.StatusWaitlist)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// ListByEvent returns all registrations of an event, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations WHERE event_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// CancelOptions selects the cancellation entry point: customers are bound to
// the deadline, admins are not.
type CancelOptions struct {
	By              string
	Reason          string
	EnforceDeadline bool
	Now             time.Time
}

// CancelByToken cancels the live registration identified by (event, phone),
// the pair a verified cancellation token carries.
func (r *RegistrationRepository) CancelByToken(ctx context.Context, eventID, phone string, opts CancelOptions) (*models.Registration, error) {
	return r.cancel(ctx, func(tx *sql.Tx) (*models.Registration, error) {
		row := tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM registrations
			 WHERE event_id = $1 AND phone_number = $2 AND status <> $3
			 ORDER BY created_at DESC LIMIT 1`,
			eventID, phone, models.StatusCancelled)

		reg, err := scanRegistration(row)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: registration not found or already cancelled", apperrors.ErrNotFound)
		}
		return reg, err
	}, opts)
}

// CancelByID cancels a registration by ID (admin entry point).
func (r *RegistrationRepository) CancelByID(ctx context.Context, registrationID string, opts CancelOptions) (*models.Registration, error) {
	return r.cancel(ctx, func(tx *sql.Tx) (*models.Registration, error) {
		row := tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`,
			registrationID)

		reg, err := scanRegistration(row)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: registration %s", apperrors.ErrNotFound, registrationID)
		}
		return reg, err
	}, opts)
}

// cancel reverses a registration's allocation effects. The compensation,
// releasing the table or decrementing the counter, runs in the same
// transaction as the CANCELLED write; a crash can never leave one without
// the other.
func (r *RegistrationRepository) cancel(ctx context.Context, load func(tx *sql.Tx) (*models.Registration, error), opts CancelOptions) (*models.Registration, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var result *models.Registration

	err := r.db.Serializable(ctx, func(tx *sql.Tx) error {
		reg, err := load(tx)
		if err != nil {
			return err
		}
		if reg.Status == models.StatusCancelled {
			return apperrors.ErrAlreadyCancelled
		}

		event, err := getEventTx(ctx, tx, reg.EventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		if event == nil {
			return fmt.Errorf("%w: event %s", apperrors.ErrNotFound, reg.EventID)
		}

		if opts.EnforceDeadline {
			hoursUntilEvent := event.StartAt.Sub(now).Hours()
			if hoursUntilEvent < float64(event.CancellationDeadlineHours) {
				return fmt.Errorf("%w: cannot cancel less than %d hours before event",
					apperrors.ErrDeadlineExceeded, event.CancellationDeadlineHours)
			}
		}

		var reason *string
		if opts.Reason != "" {
			reason = &opts.Reason
		}

		row := tx.QueryRowContext(ctx,
			`UPDATE registrations
			 SET status = $1, cancelled_at = $2, cancelled_by = $3, cancellation_reason = $4, updated_at = NOW()
			 WHERE id = $5
			 RETURNING `+registrationColumns,
			models.StatusCancelled, now, opts.By, reason, reg.ID)

		cancelled, err := scanRegistration(row)
		if err != nil {
			return fmt.Errorf("mark cancelled: %w", err)
		}

		// Compensation: only CONFIRMED registrations hold resources.
		if reg.Status == models.StatusConfirmed {
			switch event.EventType {
			case models.EventTableBased:
				if reg.AssignedTableID != nil {
					_, err := tx.ExecContext(ctx,
						`UPDATE tables SET status = $1, updated_at = NOW() WHERE id = $2`,
						models.TableAvailable, *reg.AssignedTableID)
					if err != nil {
						return fmt.Errorf("release table: %w", err)
					}
				}
			case models.EventCapacityBased:
				_, err := tx.ExecContext(ctx,
					`UPDATE events SET spots_reserved = spots_reserved - $1, updated_at = NOW() WHERE id = $2`,
					reg.SpotsCount, event.ID)
				if err != nil {
					return fmt.Errorf("release spots: %w", err)
				}
			}
		}

		result = cancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Promote confirms a waitlisted registration onto a specific table. Same
// conditional-update pattern as AllocateTable, so promotion cannot race a
// concurrent incoming registration for the table.
func (r *RegistrationRepository) Promote(ctx context.Context, registrationID, tableID string, force bool) (*models.Registration, error) {
	var result *models.Registration

	err := r.db.Serializable(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, registrationID)
		reg, err := scanRegistration(row)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: registration %s", apperrors.ErrNotFound, registrationID)
		}
		if err != nil {
			return err
		}
		if reg.Status != models.StatusWaitlist {
			return fmt.Errorf("%w: cannot assign registration with status %s",
				apperrors.ErrValidation, reg.Status)
		}

		var table models.Table
		err = tx.QueryRowContext(ctx,
			`SELECT `+tableColumns+` FROM tables WHERE id = $1`, tableID).Scan(
			&table.ID, &table.EventID, &table.TableNumber, &table.Capacity,
			&table.MinOrder, &table.Status, &table.TableOrder,
			&table.CreatedAt, &table.UpdatedAt)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: table %s", apperrors.ErrNotFound, tableID)
		}
		if err != nil {
			return err
		}
		if table.EventID != reg.EventID {
			return fmt.Errorf("%w: table does not belong to this event", apperrors.ErrValidation)
		}

		guests := reg.SpotsCount
		if reg.GuestsCount != nil {
			guests = *reg.GuestsCount
		}
		if guests < table.MinOrder && !force {
			return fmt.Errorf("%w: guest count %d is below table minimum order %d",
				apperrors.ErrValidation, guests, table.MinOrder)
		}
		// Capacity is a hard limit, force or not.
		if guests > table.Capacity {
			return fmt.Errorf("%w: guest count %d exceeds table capacity %d",
				apperrors.ErrValidation, guests, table.Capacity)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE tables SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
			models.TableReserved, tableID, models.TableAvailable)
		if err != nil {
			return fmt.Errorf("reserve table: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: table %d is not available", apperrors.ErrValidation, table.TableNumber)
		}

		promoted := tx.QueryRowContext(ctx,
			`UPDATE registrations
			 SET status = $1, waitlist_priority = NULL, assigned_table_id = $2, updated_at = NOW()
			 WHERE id = $3
			 RETURNING `+registrationColumns,
			models.StatusConfirmed, tableID, registrationID)

		result, err = scanRegistration(promoted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Repair re-derives CONFIRMED/WAITLIST for every non-cancelled registration
// of an event by replaying arrival order, writes back any row whose stored
// status disagrees, and resynchronizes spots_reserved with the confirmed
// sum. Idempotent: a second run over a consistent event changes nothing.
func (r *RegistrationRepository) Repair(ctx context.Context, eventID string) ([]models.RepairFix, error) {
	var fixes []models.RepairFix

	err := r.db.Serializable(ctx, func(tx *sql.Tx) error {
		fixes = nil

		event, err := getEventTx(ctx, tx, eventID)
		if err != nil {
			return fmt.Errorf("load event: %w", err)
		}
		if event == nil {
			return fmt.Errorf("%w: event %s", apperrors.ErrNotFound, eventID)
		}
		if event.EventType != models.EventCapacityBased {
			// Table-based consistency is anchored on table status, which the
			// allocation and cancellation transactions already keep exact.
			return nil
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT id, confirmation_code, status, spots_count FROM registrations
			 WHERE event_id = $1 AND status <> $2
			 ORDER BY created_at ASC`,
			eventID, models.StatusCancelled)
		if err != nil {
			return err
		}

		type regRow struct {
			id, code, status string
			spots            int
		}
		var regs []regRow
		for rows.Next() {
			var rr regRow
			if err := rows.Scan(&rr.id, &rr.code, &rr.status, &rr.spots); err != nil {
				rows.Close()
				return err
			}
			regs = append(regs, rr)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		spots := make([]int, len(regs))
		for i, rr := range regs {
			spots[i] = rr.spots
		}
		expected := capacity.Replay(event.Capacity, spots)

		confirmedSpots := 0
		for i, rr := range regs {
			if expected[i] == models.StatusConfirmed {
				confirmedSpots += rr.spots
			}

			if rr.status == expected[i] {
				continue
			}

			fixes = append(fixes, models.RepairFix{
				RegistrationID:   rr.id,
				ConfirmationCode: rr.code,
				OldStatus:        rr.status,
				NewStatus:        expected[i],
			})

			if expected[i] == models.StatusWaitlist {
				_, err = tx.ExecContext(ctx,
					`UPDATE registrations
					 SET status = $1,
					     waitlist_priority = (SELECT COALESCE(MAX(waitlist_priority), 0) + 1
					                          FROM registrations WHERE event_id = $2 AND status = $1),
					     updated_at = NOW()
					 WHERE id = $3`,
					models.StatusWaitlist, eventID, rr.id)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE registrations
					 SET status = $1, waitlist_priority = NULL, updated_at = NOW()
					 WHERE id = $2`,
					models.StatusConfirmed, rr.id)
			}
			if err != nil {
				return fmt.Errorf("write corrected status: %w", err)
			}
		}

		if event.SpotsReserved != confirmedSpots {
			_, err = tx.ExecContext(ctx,
				`UPDATE events SET spots_reserved = $1, updated_at = NOW() WHERE id = $2`,
				confirmedSpots, eventID)
			if err != nil {
				return fmt.Errorf("resync spots_reserved: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return fixes, nil
}

// ConfirmedSpotsSum returns the total confirmed spots of an event. Used by
// tests and the public spots-left view.
func (r *RegistrationRepository) ConfirmedSpotsSum(ctx context.Context, eventID string) (int, error) {
	var sum int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(spots_count), 0) FROM registrations WHERE event_id = $1 AND status = $2`,
		eventID, models.StatusConfirmed,
	).Scan(&sum)
	return sum, err
}
