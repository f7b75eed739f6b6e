package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartis/internal/apperrors"
	"kartis/internal/database"
	"kartis/internal/models"
)

// These tests need a real Postgres because the allocation engines lean on
// SERIALIZABLE isolation. Point TEST_DATABASE_DSN at a scratch database to
// run them; without it they skip.
func setupTestDB(t *testing.T) (*database.DB, *Repositories) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	db, err := database.ConnectDSN(dsn, database.Config{
		MaxOpenConns:       50,
		MaxIdleConns:       10,
		ConnMaxLifetimeMin: 5,
		ConnMaxIdleTimeMin: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations())

	return db, NewRepositories(db)
}

func createTestSchool(t *testing.T, repos *Repositories) string {
	t.Helper()
	id, err := repos.Events.CreateSchool(context.Background(),
		"Test School "+uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	return id
}

func createTestEvent(t *testing.T, repos *Repositories, schoolID, eventType string, capacity int) *models.Event {
	t.Helper()
	event := &models.Event{
		SchoolID:                  schoolID,
		Title:                     "Test Event",
		EventType:                 eventType,
		Status:                    models.EventOpen,
		Capacity:                  capacity,
		MaxSpotsPerPerson:         10,
		CancellationDeadlineHours: 24,
		StartAt:                   time.Now().Add(7 * 24 * time.Hour),
	}
	require.NoError(t, repos.Events.Create(context.Background(), event))
	return event
}

func testDraft(eventID string, spots int) *models.Registration {
	guests := spots
	return &models.Registration{
		EventID:           eventID,
		PhoneNumber:       "05" + uuid.NewString()[:8],
		SpotsCount:        spots,
		GuestsCount:       &guests,
		ConfirmationCode:  uuid.NewString()[:8],
		CancellationToken: uuid.NewString(),
	}
}

func TestAllocateCapacityNoOverbooking(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventCapacityBased, 10)

	const workers = 20
	results := make(chan *models.Registration, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 2))
			if err == nil {
				results <- reg
			}
		}()
	}
	wg.Wait()
	close(results)

	confirmedSpots := 0
	for reg := range results {
		if reg.Status == models.StatusConfirmed {
			confirmedSpots += reg.SpotsCount
		}
	}
	assert.LessOrEqual(t, confirmedSpots, event.Capacity)

	// The stored counter must equal the confirmed sum.
	reloaded, err := repos.Events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	sum, err := repos.Registrations.ConfirmedSpotsSum(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, sum, reloaded.SpotsReserved)
}

func TestAllocateCapacityWaitlistOrder(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventCapacityBased, 2)

	// Fill the event, then waitlist three more sequentially.
	_, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 2))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		reg, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 1))
		require.NoError(t, err)
		assert.Equal(t, models.StatusWaitlist, reg.Status)
	}

	waitlist, err := repos.Registrations.ListWaitlist(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, waitlist, 3)
	for i, reg := range waitlist {
		require.NotNil(t, reg.WaitlistPriority)
		assert.Equal(t, i+1, *reg.WaitlistPriority)
	}
}

func TestAllocateCapacityBoundary(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventCapacityBased, 10)

	// Exactly filling the last spots is CONFIRMED.
	first, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 10))
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, first.Status)

	// One more spot goes to the waitlist.
	second, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitlist, second.Status)
}

func TestAllocateCapacityDuplicatePhone(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventCapacityBased, 10)

	draft := testDraft(event.ID, 1)
	_, err := repos.Registrations.AllocateCapacity(ctx, draft)
	require.NoError(t, err)

	again := testDraft(event.ID, 1)
	again.PhoneNumber = draft.PhoneNumber
	_, err = repos.Registrations.AllocateCapacity(ctx, again)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
}

func TestAllocateTableSingleWinner(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventTableBased, 0)

	table := &models.Table{
		EventID:     event.ID,
		TableNumber: 1,
		Capacity:    4,
		MinOrder:    2,
		Status:      models.TableAvailable,
	}
	require.NoError(t, repos.Tables.Create(ctx, table))

	const workers = 20
	results := make(chan *models.Registration, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg, err := repos.Registrations.AllocateTable(ctx, testDraft(event.ID, 4), 4)
			if err == nil {
				results <- reg
			}
		}()
	}
	wg.Wait()
	close(results)

	confirmed := 0
	for reg := range results {
		if reg.Status == models.StatusConfirmed {
			confirmed++
			require.NotNil(t, reg.AssignedTableID)
			assert.Equal(t, table.ID, *reg.AssignedTableID)
		}
	}
	assert.Equal(t, 1, confirmed, "exactly one party can win a single table")

	reloaded, err := repos.Tables.GetByID(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableReserved, reloaded.Status)
}

func TestAllocateTableBestFit(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventTableBased, 0)

	large := &models.Table{EventID: event.ID, TableNumber: 1, Capacity: 8, MinOrder: 1, Status: models.TableAvailable}
	small := &models.Table{EventID: event.ID, TableNumber: 2, Capacity: 4, MinOrder: 1, Status: models.TableAvailable}
	require.NoError(t, repos.Tables.Create(ctx, large))
	require.NoError(t, repos.Tables.Create(ctx, small))

	reg, err := repos.Registrations.AllocateTable(ctx, testDraft(event.ID, 3), 3)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, reg.Status)
	require.NotNil(t, reg.AssignedTableID)
	assert.Equal(t, small.ID, *reg.AssignedTableID, "smallest fitting table wins")
}

func TestAllocateTableNoFitWaitlists(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventTableBased, 0)

	table := &models.Table{EventID: event.ID, TableNumber: 1, Capacity: 4, MinOrder: 2, Status: models.TableAvailable}
	require.NoError(t, repos.Tables.Create(ctx, table))

	// A single guest is below every table's minimum order: waitlisted, not
	// an error.
	reg, err := repos.Registrations.AllocateTable(ctx, testDraft(event.ID, 1), 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitlist, reg.Status)
	require.NotNil(t, reg.WaitlistPriority)
	assert.Equal(t, 1, *reg.WaitlistPriority)
}

func TestCancelReleasesTable(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventTableBased, 0)

	table := &models.Table{EventID: event.ID, TableNumber: 1, Capacity: 4, MinOrder: 1, Status: models.TableAvailable}
	require.NoError(t, repos.Tables.Create(ctx, table))

	reg, err := repos.Registrations.AllocateTable(ctx, testDraft(event.ID, 4), 4)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, reg.Status)

	cancelled, err := repos.Registrations.CancelByID(ctx, reg.ID, CancelOptions{
		By: models.CancelledByAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	reloaded, err := repos.Tables.GetByID(ctx, table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, reloaded.Status)

	// Cancelling again is a conflict.
	_, err = repos.Registrations.CancelByID(ctx, reg.ID, CancelOptions{By: models.CancelledByAdmin})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCancelled)
}

func TestCancelRestoresCapacity(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventCapacityBased, 10)

	reg, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 6))
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, reg.Status)

	_, err = repos.Registrations.CancelByToken(ctx, event.ID, reg.PhoneNumber, CancelOptions{
		By:              models.CancelledByCustomer,
		EnforceDeadline: true,
	})
	require.NoError(t, err)

	reloaded, err := repos.Events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.SpotsReserved)
}

func TestCancelDeadlineEnforced(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := &models.Event{
		SchoolID:                  schoolID,
		Title:                     "Tonight",
		EventType:                 models.EventCapacityBased,
		Status:                    models.EventOpen,
		Capacity:                  10,
		MaxSpotsPerPerson:         10,
		CancellationDeadlineHours: 24,
		StartAt:                   time.Now().Add(2 * time.Hour),
	}
	require.NoError(t, repos.Events.Create(ctx, event))

	reg, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 1))
	require.NoError(t, err)

	// Customer path: too close to the event.
	_, err = repos.Registrations.CancelByToken(ctx, event.ID, reg.PhoneNumber, CancelOptions{
		By:              models.CancelledByCustomer,
		EnforceDeadline: true,
	})
	assert.ErrorIs(t, err, apperrors.ErrDeadlineExceeded)

	// Admin path ignores the deadline.
	cancelled, err := repos.Registrations.CancelByID(ctx, reg.ID, CancelOptions{
		By: models.CancelledByAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}

func TestRepairFixesDriftIdempotently(t *testing.T) {
	db, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventCapacityBased, 10)

	first, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 6))
	require.NoError(t, err)
	second, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 6))
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, first.Status)
	require.Equal(t, models.StatusWaitlist, second.Status)

	// Corrupt state by hand: flip the first to WAITLIST and break the
	// counter, the kind of drift repair exists for.
	_, err = db.ExecContext(ctx,
		`UPDATE registrations SET status = $1, waitlist_priority = 99 WHERE id = $2`,
		models.StatusWaitlist, first.ID)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`UPDATE events SET spots_reserved = 3 WHERE id = $1`, event.ID)
	require.NoError(t, err)

	fixes, err := repos.Registrations.Repair(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, first.ID, fixes[0].RegistrationID)
	assert.Equal(t, models.StatusWaitlist, fixes[0].OldStatus)
	assert.Equal(t, models.StatusConfirmed, fixes[0].NewStatus)

	reloaded, err := repos.Events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, reloaded.SpotsReserved)

	// Second run over consistent state changes nothing.
	fixes, err = repos.Registrations.Repair(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, fixes)
}

func TestPromoteFromWaitlist(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventTableBased, 0)

	taken := &models.Table{EventID: event.ID, TableNumber: 1, Capacity: 4, MinOrder: 1, Status: models.TableAvailable}
	require.NoError(t, repos.Tables.Create(ctx, taken))

	winner, err := repos.Registrations.AllocateTable(ctx, testDraft(event.ID, 4), 4)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, winner.Status)

	waitlisted, err := repos.Registrations.AllocateTable(ctx, testDraft(event.ID, 4), 4)
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlist, waitlisted.Status)

	// A new table frees up; the admin promotes onto it.
	fresh := &models.Table{EventID: event.ID, TableNumber: 2, Capacity: 6, MinOrder: 5, Status: models.TableAvailable}
	require.NoError(t, repos.Tables.Create(ctx, fresh))

	// Party of 4 is below min_order 5: rejected without force.
	_, err = repos.Registrations.Promote(ctx, waitlisted.ID, fresh.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Force overrides the minimum order.
	promoted, err := repos.Registrations.Promote(ctx, waitlisted.ID, fresh.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, promoted.Status)
	assert.Nil(t, promoted.WaitlistPriority)
	require.NotNil(t, promoted.AssignedTableID)
	assert.Equal(t, fresh.ID, *promoted.AssignedTableID)

	// Capacity is never overridden, force or not.
	over, err := repos.Registrations.AllocateTable(ctx, testDraft(event.ID, 8), 8)
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlist, over.Status)

	tiny := &models.Table{EventID: event.ID, TableNumber: 3, Capacity: 4, MinOrder: 1, Status: models.TableAvailable}
	require.NoError(t, repos.Tables.Create(ctx, tiny))
	_, err = repos.Registrations.Promote(ctx, over.ID, tiny.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestClosedEventRejectsRegistration(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventCapacityBased, 10)
	require.NoError(t, repos.Events.SetStatus(ctx, event.ID, models.EventClosed))

	_, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 1))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMaxSpotsPerPersonEnforced(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	event := createTestEvent(t, repos, schoolID, models.EventCapacityBased, 100)

	_, err := repos.Registrations.AllocateCapacity(ctx, testDraft(event.ID, 11))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestBanLifecycle(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	phone := fmt.Sprintf("05%08d", time.Now().UnixNano()%100000000)

	// Game-count ban: blocks until two events complete.
	ban := &models.UserBan{SchoolID: schoolID, PhoneNumber: phone, BannedGamesCount: 2}
	require.NoError(t, repos.Bans.Create(ctx, ban))

	active, err := repos.Bans.FindActive(ctx, schoolID, phone, time.Now())
	require.NoError(t, err)
	require.NotNil(t, active)

	_, err = repos.Bans.IncrementForSchool(ctx, schoolID)
	require.NoError(t, err)
	active, err = repos.Bans.FindActive(ctx, schoolID, phone, time.Now())
	require.NoError(t, err)
	require.NotNil(t, active, "one blocked event of two: still banned")

	_, err = repos.Bans.IncrementForSchool(ctx, schoolID)
	require.NoError(t, err)
	active, err = repos.Bans.FindActive(ctx, schoolID, phone, time.Now())
	require.NoError(t, err)
	assert.Nil(t, active, "count reached: ban over")
}

func TestBanBothModesRejected(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	expires := time.Now().Add(24 * time.Hour)

	err := repos.Bans.Create(ctx, &models.UserBan{
		SchoolID:         schoolID,
		PhoneNumber:      "0512345678",
		ExpiresAt:        &expires,
		BannedGamesCount: 3,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
