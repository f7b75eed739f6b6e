// Package token issues and verifies the capability tokens the core hands
// out: signed cancellation tokens for self-service cancellation, admin
// principal tokens minted by the auth collaborator, and random check-in
// tokens for the shareable check-in page.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kartis/internal/apperrors"
	"kartis/internal/models"
)

type Config struct {
	Secret      string
	CancelTTL   time.Duration
	AdminIssuer string
}

type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// CancelClaims binds a cancellation capability to one event and one
// identity. Whoever holds the token may cancel that registration, nothing
// else.
type CancelClaims struct {
	EventID string `json:"event_id"`
	Phone   string `json:"phone"`
	jwt.RegisteredClaims
}

// IssueCancelToken signs a cancellation token for the given event and
// normalized phone number.
func (m *Manager) IssueCancelToken(eventID, phone string) (string, error) {
	now := time.Now()
	claims := CancelClaims{
		EventID: eventID,
		Phone:   phone,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.CancelTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign cancel token: %w", err)
	}
	return signed, nil
}

// VerifyCancelToken parses and validates a cancellation token. Any failure
// (bad signature, expiry, malformed claims) surfaces as ErrInvalidToken.
func (m *Manager) VerifyCancelToken(raw string) (*CancelClaims, error) {
	claims := &CancelClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.cfg.Secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.EventID == "" || claims.Phone == "" {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// AdminClaims is the principal embedded in admin tokens minted by the auth
// collaborator.
type AdminClaims struct {
	Role     string `json:"role"`
	SchoolID string `json:"school_id"`
	jwt.RegisteredClaims
}

// VerifyAdminToken validates an admin token and extracts the principal.
func (m *Manager) VerifyAdminToken(raw string) (models.AdminPrincipal, error) {
	claims := &AdminClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.cfg.Secret), nil
	}, jwt.WithIssuer(m.cfg.AdminIssuer))
	if err != nil || !tok.Valid {
		return models.AdminPrincipal{}, apperrors.ErrInvalidToken
	}

	switch claims.Role {
	case models.RoleAdmin, models.RoleOwner, models.RoleSuperAdmin:
	default:
		return models.AdminPrincipal{}, apperrors.ErrInvalidToken
	}

	return models.AdminPrincipal{
		ID:       claims.Subject,
		Role:     claims.Role,
		SchoolID: claims.SchoolID,
	}, nil
}

// IssueAdminToken mints an admin principal token. Exposed for the sweeper
// and for tests; in production the auth collaborator issues these.
func (m *Manager) IssueAdminToken(adminID, role, schoolID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role:     role,
		SchoolID: schoolID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminID,
			Issuer:    m.cfg.AdminIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// NewCheckInToken generates a random check-in token: 32 bytes, base64url,
// shareable without exposing admin credentials.
func NewCheckInToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate check-in token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
