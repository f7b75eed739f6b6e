package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"kartis/internal/apperrors"
	"kartis/internal/database"
	"kartis/internal/models"
)

type TableRepository struct {
	db *database.DB
}

func NewTableRepository(db *database.DB) *TableRepository {
	return &TableRepository{db: db}
}

const tableColumns = `id, event_id, table_number, capacity, min_order, status, table_order, created_at, updated_at`

func scanTable(row interface{ Scan(...any) error }) (*models.Table, error) {
	t := &models.Table{}
	err := row.Scan(
		&t.ID,
		&t.EventID,
		&t.TableNumber,
		&t.Capacity,
		&t.MinOrder,
		&t.Status,
		&t.TableOrder,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TableRepository) Create(ctx context.Context, table *models.Table) error {
	query := `
		INSERT INTO tables (event_id, table_number, capacity, min_order, status, table_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		table.EventID,
		table.TableNumber,
		table.Capacity,
		table.MinOrder,
		table.Status,
		table.TableOrder,
	).Scan(&table.ID, &table.CreatedAt, &table.UpdatedAt)
}

func (r *TableRepository) GetByID(ctx context.Context, id string) (*models.Table, error) {
	query := `SELECT ` + tableColumns + ` FROM tables WHERE id = $1`

	table, err := scanTable(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return table, err
}

func (r *TableRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Table, error) {
	query := `SELECT ` + tableColumns + `
		FROM tables WHERE event_id = $1
		ORDER BY table_order ASC, table_number ASC`

	return r.queryTables(ctx, query, eventID)
}

// ListAvailable returns AVAILABLE tables of an event in best-fit order:
// capacity ascending, table order as tie-break.
func (r *TableRepository) ListAvailable(ctx context.Context, eventID string) ([]models.Table, error) {
	query := `SELECT ` + tableColumns + `
		FROM tables WHERE event_id = $1 AND status = $2
		ORDER BY capacity ASC, table_order ASC`

	return r.queryTables(ctx, query, eventID, models.TableAvailable)
}

func (r *TableRepository) queryTables(ctx context.Context, query string, args ...any) ([]models.Table, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *table)
	}
	return tables, rows.Err()
}

// Update applies the non-nil fields of req. The statement is keyed on
// (id, event_id) so a table can only be reached through its own event.
// Shrinking capacity below min_order is rejected by the table's CHECK
// constraint.
func (r *TableRepository) Update(ctx context.Context, eventID, id string, req *models.UpdateTableRequest) (*models.Table, error) {
	query := `
		UPDATE tables SET
			capacity = COALESCE($1, capacity),
			min_order = COALESCE($2, min_order),
			table_order = COALESCE($3, table_order),
			status = COALESCE($4, status),
			updated_at = NOW()
		WHERE id = $5 AND event_id = $6
		RETURNING ` + tableColumns

	table, err := scanTable(r.db.QueryRowContext(ctx, query,
		req.Capacity, req.MinOrder, req.TableOrder, req.Status, id, eventID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: table %s", apperrors.ErrNotFound, id)
	}
	return table, err
}

// Delete removes a table of the given event unless it is currently RESERVED.
func (r *TableRepository) Delete(ctx context.Context, eventID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tables WHERE id = $1 AND event_id = $2 AND status <> $3`,
		id, eventID, models.TableReserved)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either missing, another event's, or reserved; distinguish for the
		// caller without leaking other events' tables.
		table, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if table == nil || table.EventID != eventID {
			return fmt.Errorf("%w: table %s", apperrors.ErrNotFound, id)
		}
		return fmt.Errorf("%w: table %d is reserved", apperrors.ErrValidation, table.TableNumber)
	}
	return nil
}

// BulkDelete removes several tables, skipping RESERVED ones. Returns the
// number actually deleted.
func (r *TableRepository) BulkDelete(ctx context.Context, eventID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `DELETE FROM tables WHERE event_id = $1 AND status <> $2 AND id = ANY($3)`
	result, err := r.db.ExecContext(ctx, query, eventID, models.TableReserved, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Reorder rewrites table_order to match the given ID sequence.
func (r *TableRepository) Reorder(ctx context.Context, eventID string, ids []string) error {
	return r.db.Serializable(ctx, func(tx *sql.Tx) error {
		for i, id := range ids {
			_, err := tx.ExecContext(ctx,
				`UPDATE tables SET table_order = $1, updated_at = NOW() WHERE id = $2 AND event_id = $3`,
				i, id, eventID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Duplicate copies a table's shape under the next free table number. Keyed
// on (id, event_id) like Update and Delete.
func (r *TableRepository) Duplicate(ctx context.Context, eventID, id string) (*models.Table, error) {
	query := `
		INSERT INTO tables (event_id, table_number, capacity, min_order, status, table_order)
		SELECT t.event_id,
			(SELECT COALESCE(MAX(table_number), 0) + 1 FROM tables WHERE event_id = t.event_id),
			t.capacity, t.min_order, $1, t.table_order + 1
		FROM tables t WHERE t.id = $2 AND t.event_id = $3
		RETURNING ` + tableColumns

	table, err := scanTable(r.db.QueryRowContext(ctx, query, models.TableAvailable, id, eventID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: table %s", apperrors.ErrNotFound, id)
	}
	return table, err
}
