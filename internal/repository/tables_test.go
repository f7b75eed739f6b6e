package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartis/internal/apperrors"
	"kartis/internal/models"
)

func TestTableMutationsScopedToEvent(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolA := createTestSchool(t, repos)
	schoolB := createTestSchool(t, repos)
	eventA := createTestEvent(t, repos, schoolA, models.EventTableBased, 0)
	eventB := createTestEvent(t, repos, schoolB, models.EventTableBased, 0)

	foreign := &models.Table{EventID: eventB.ID, TableNumber: 1, Capacity: 4, MinOrder: 1, Status: models.TableAvailable}
	require.NoError(t, repos.Tables.Create(ctx, foreign))

	// Reaching another event's table through your own event id must look
	// like the table does not exist.
	newCap := 2
	_, err := repos.Tables.Update(ctx, eventA.ID, foreign.ID, &models.UpdateTableRequest{Capacity: &newCap})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = repos.Tables.Delete(ctx, eventA.ID, foreign.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repos.Tables.Duplicate(ctx, eventA.ID, foreign.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// The foreign table is untouched.
	reloaded, err := repos.Tables.GetByID(ctx, foreign.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	assert.Equal(t, 4, reloaded.Capacity)

	tables, err := repos.Tables.ListByEvent(ctx, eventB.ID)
	require.NoError(t, err)
	assert.Len(t, tables, 1)

	// Through its own event everything works.
	updated, err := repos.Tables.Update(ctx, eventB.ID, foreign.ID, &models.UpdateTableRequest{Capacity: &newCap})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Capacity)
}

func TestDeleteTableReferencedByCancelledRegistration(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventTableBased, 0)

	table := &models.Table{EventID: event.ID, TableNumber: 1, Capacity: 4, MinOrder: 1, Status: models.TableAvailable}
	require.NoError(t, repos.Tables.Create(ctx, table))

	reg, err := repos.Registrations.AllocateTable(ctx, testDraft(event.ID, 4), 4)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, reg.Status)

	// Cancellation releases the table but keeps the reference for audit.
	cancelled, err := repos.Registrations.CancelByID(ctx, reg.ID, CancelOptions{By: models.CancelledByAdmin})
	require.NoError(t, err)
	require.NotNil(t, cancelled.AssignedTableID)

	// Deleting the now-available table must not trip over that reference.
	require.NoError(t, repos.Tables.Delete(ctx, event.ID, table.ID))

	reloaded, err := repos.Registrations.GetByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.AssignedTableID)
	assert.Equal(t, models.StatusCancelled, reloaded.Status)
}
