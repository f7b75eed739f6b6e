package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartis/internal/models"
)

func intPtr(n int) *int { return &n }

func reg(id string, guests, priority int) models.Registration {
	return models.Registration{
		ID:               id,
		Status:           models.StatusWaitlist,
		SpotsCount:       guests,
		GuestsCount:      intPtr(guests),
		WaitlistPriority: intPtr(priority),
	}
}

func table(id string, capacity, minOrder, order int) models.Table {
	return models.Table{
		ID:         id,
		Capacity:   capacity,
		MinOrder:   minOrder,
		Status:     models.TableAvailable,
		TableOrder: order,
	}
}

func TestComputeMatchesBestFitOrder(t *testing.T) {
	waitlist := []models.Registration{reg("r1", 4, 1)}
	// Already in best-fit order: capacity ascending.
	available := []models.Table{
		table("small", 4, 2, 0),
		table("large", 8, 2, 1),
	}

	entries := computeMatches(waitlist, available)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.True(t, entry.HasMatch)
	require.NotNil(t, entry.BestTable)
	assert.Equal(t, "small", entry.BestTable.ID)
	assert.Len(t, entry.MatchingTables, 2)
}

func TestComputeMatchesMinOrderExcludes(t *testing.T) {
	// A party of 2 cannot take a table whose minimum order is 4.
	waitlist := []models.Registration{reg("r1", 2, 1)}
	available := []models.Table{table("big", 8, 4, 0)}

	entries := computeMatches(waitlist, available)
	require.Len(t, entries, 1)

	assert.False(t, entries[0].HasMatch)
	assert.Nil(t, entries[0].BestTable)
	assert.Empty(t, entries[0].MatchingTables)
}

func TestComputeMatchesCapacityExcludes(t *testing.T) {
	waitlist := []models.Registration{reg("r1", 10, 1)}
	available := []models.Table{table("small", 4, 1, 0)}

	entries := computeMatches(waitlist, available)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].HasMatch)
}

func TestComputeMatchesPreservesPriorityOrder(t *testing.T) {
	waitlist := []models.Registration{
		reg("first", 2, 1),
		reg("second", 2, 2),
		reg("third", 6, 3),
	}
	available := []models.Table{table("t1", 4, 1, 0)}

	entries := computeMatches(waitlist, available)
	require.Len(t, entries, 3)

	assert.Equal(t, "first", entries[0].RegistrationID)
	assert.Equal(t, 1, entries[0].WaitlistPriority)
	assert.Equal(t, "second", entries[1].RegistrationID)
	assert.Equal(t, "third", entries[2].RegistrationID)

	// Only the parties of 2 fit the single table.
	assert.True(t, entries[0].HasMatch)
	assert.True(t, entries[1].HasMatch)
	assert.False(t, entries[2].HasMatch)
}

func TestComputeMatchesEmptyWaitlist(t *testing.T) {
	entries := computeMatches(nil, []models.Table{table("t1", 4, 1, 0)})
	assert.Empty(t, entries)
}

func TestComputeMatchesBoundaryInclusive(t *testing.T) {
	// Guest count equal to min_order and equal to capacity both match.
	available := []models.Table{table("t1", 6, 3, 0)}

	atMin := computeMatches([]models.Registration{reg("r1", 3, 1)}, available)
	require.Len(t, atMin, 1)
	assert.True(t, atMin[0].HasMatch)

	atCap := computeMatches([]models.Registration{reg("r2", 6, 1)}, available)
	require.Len(t, atCap, 1)
	assert.True(t, atCap[0].HasMatch)
}
