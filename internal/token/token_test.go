package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartis/internal/apperrors"
	"kartis/internal/models"
)

func newTestManager() *Manager {
	return NewManager(Config{
		Secret:      "test-secret",
		CancelTTL:   30 * 24 * time.Hour,
		AdminIssuer: "kartis-auth",
	})
}

func TestCancelTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	raw, err := m.IssueCancelToken("event-1", "0501234567")
	require.NoError(t, err)

	claims, err := m.VerifyCancelToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "event-1", claims.EventID)
	assert.Equal(t, "0501234567", claims.Phone)
}

func TestCancelTokenWrongSecret(t *testing.T) {
	m := newTestManager()
	other := NewManager(Config{Secret: "other-secret", CancelTTL: time.Hour, AdminIssuer: "kartis-auth"})

	raw, err := other.IssueCancelToken("event-1", "0501234567")
	require.NoError(t, err)

	_, err = m.VerifyCancelToken(raw)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestCancelTokenGarbage(t *testing.T) {
	m := newTestManager()
	_, err := m.VerifyCancelToken("not-a-jwt")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestAdminTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	raw, err := m.IssueAdminToken("admin-7", models.RoleOwner, "school-3", time.Hour)
	require.NoError(t, err)

	principal, err := m.VerifyAdminToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "admin-7", principal.ID)
	assert.Equal(t, models.RoleOwner, principal.Role)
	assert.Equal(t, "school-3", principal.SchoolID)
}

func TestAdminTokenBadRole(t *testing.T) {
	m := newTestManager()

	raw, err := m.IssueAdminToken("admin-7", "INTERN", "school-3", time.Hour)
	require.NoError(t, err)

	_, err = m.VerifyAdminToken(raw)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestCheckInTokenFormat(t *testing.T) {
	tok, err := NewCheckInToken()
	require.NoError(t, err)
	// 32 random bytes encode to 43 base64url characters.
	assert.Len(t, tok, 43)

	other, err := NewCheckInToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}
