package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartis/internal/apperrors"
	"kartis/internal/models"
)

func TestLiftBanScopedToSchool(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolA := createTestSchool(t, repos)
	schoolB := createTestSchool(t, repos)

	ban := &models.UserBan{SchoolID: schoolB, PhoneNumber: "0501234567", BannedGamesCount: 3}
	require.NoError(t, repos.Bans.Create(ctx, ban))

	// Lifting through the wrong school must look like the ban does not
	// exist and must leave it active.
	err := repos.Bans.Lift(ctx, schoolA, ban.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	active, err := repos.Bans.FindActive(ctx, schoolB, ban.PhoneNumber, time.Now())
	require.NoError(t, err)
	require.NotNil(t, active)

	// Through its own school the lift works, once.
	require.NoError(t, repos.Bans.Lift(ctx, schoolB, ban.ID))
	active, err = repos.Bans.FindActive(ctx, schoolB, ban.PhoneNumber, time.Now())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestDateBanExpiryBoundary(t *testing.T) {
	_, repos := setupTestDB(t)
	ctx := context.Background()

	schoolID := createTestSchool(t, repos)
	// Truncate to Postgres timestamp precision so the exact instant
	// round-trips.
	expires := time.Now().Add(time.Hour).Truncate(time.Microsecond)

	ban := &models.UserBan{SchoolID: schoolID, PhoneNumber: "0507654321", ExpiresAt: &expires}
	require.NoError(t, repos.Bans.Create(ctx, ban))

	// At the expiry instant itself the ban still blocks and the sweep does
	// not deactivate it yet.
	active, err := repos.Bans.FindActive(ctx, schoolID, ban.PhoneNumber, expires)
	require.NoError(t, err)
	assert.NotNil(t, active)

	_, err = repos.Bans.DeactivateExpired(ctx, expires)
	require.NoError(t, err)
	assert.True(t, banActive(t, repos, schoolID, ban.ID))

	// One instant past expiry it no longer blocks and the sweep picks it up.
	after := expires.Add(time.Microsecond)
	active, err = repos.Bans.FindActive(ctx, schoolID, ban.PhoneNumber, after)
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = repos.Bans.DeactivateExpired(ctx, after)
	require.NoError(t, err)
	assert.False(t, banActive(t, repos, schoolID, ban.ID))
}

func banActive(t *testing.T, repos *Repositories, schoolID, banID string) bool {
	t.Helper()
	bans, err := repos.Bans.ListBySchool(context.Background(), schoolID)
	require.NoError(t, err)
	for _, b := range bans {
		if b.ID == banID {
			return b.Active
		}
	}
	t.Fatalf("ban %s not found in school %s", banID, schoolID)
	return false
}
