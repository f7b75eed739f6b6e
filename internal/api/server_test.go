package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kartis/internal/models"
	"kartis/internal/service"
	"kartis/internal/token"
)

// testServer wires a router without external backends. Only request paths
// that fail before touching storage are exercised here; the allocation paths
// are covered by the repository tests.
func testServer(t *testing.T) (*Server, *token.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := token.NewManager(token.Config{
		Secret:      "test-secret",
		CancelTTL:   time.Hour,
		AdminIssuer: "test-issuer",
	})

	services := service.NewServices(service.Deps{Tokens: tokens})

	return NewServer(Options{
		Port:     "0",
		GinMode:  gin.TestMode,
		Services: services,
		Tokens:   tokens,
	}), tokens
}

func doRequest(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestRegisterRejectsMalformedBody(t *testing.T) {
	s, _ := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/events/some-id/register", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRequiresPhone(t *testing.T) {
	s, _ := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/events/some-id/register",
		`{"spots_count": 2}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelRequiresToken(t *testing.T) {
	s, _ := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/cancellations", `{"reason": "plans changed"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelRejectsGarbageToken(t *testing.T) {
	s, _ := testServer(t)

	w := doRequest(s, http.MethodPost, "/api/v1/cancellations",
		`{"token": "not-a-jwt"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireBearerToken(t *testing.T) {
	s, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/admin/events/some-id", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(s, http.MethodGet, "/api/v1/admin/events/some-id", "", map[string]string{
		"Authorization": "Bearer bogus",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminTokenWrongIssuerRejected(t *testing.T) {
	s, _ := testServer(t)

	other := token.NewManager(token.Config{
		Secret:      "test-secret",
		AdminIssuer: "someone-else",
	})
	raw, err := other.IssueAdminToken("admin-1", models.RoleAdmin, "school-1", time.Hour)
	require.NoError(t, err)

	w := doRequest(s, http.MethodGet, "/api/v1/admin/events/some-id", "", map[string]string{
		"Authorization": "Bearer " + raw,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminCreateBanValidatesBody(t *testing.T) {
	s, tokens := testServer(t)

	raw, err := tokens.IssueAdminToken("admin-1", models.RoleAdmin, "school-1", time.Hour)
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + raw}

	// Missing required phone field.
	w := doRequest(s, http.MethodPost, "/api/v1/admin/schools/school-1/bans",
		`{"games_count": 3}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminSchoolScopeEnforced(t *testing.T) {
	s, tokens := testServer(t)

	raw, err := tokens.IssueAdminToken("admin-1", models.RoleAdmin, "school-1", time.Hour)
	require.NoError(t, err)

	// A school-1 admin cannot create events under school-2; the scope check
	// runs before any storage access.
	w := doRequest(s, http.MethodPost, "/api/v1/admin/schools/school-2/events",
		`{"title": "Quiz Night", "event_type": "CAPACITY_BASED", "capacity": 50, "start_at": "2026-09-01T19:00:00Z"}`,
		map[string]string{"Authorization": "Bearer " + raw})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRepairAllRequiresSuperAdmin(t *testing.T) {
	s, tokens := testServer(t)

	raw, err := tokens.IssueAdminToken("admin-1", models.RoleAdmin, "school-1", time.Hour)
	require.NoError(t, err)

	w := doRequest(s, http.MethodPost, "/api/v1/admin/repair", "", map[string]string{
		"Authorization": "Bearer " + raw,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckInRequiresToken(t *testing.T) {
	s, _ := testServer(t)

	w := doRequest(s, http.MethodGet, "/api/v1/checkin/some-event/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
