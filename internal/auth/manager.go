package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clipstream/backend/internal/models"
)

var (
	// ErrTokenRequired indicates no refresh token was presented.
	ErrTokenRequired = errors.New("refresh token required")
	// ErrTokenInvalid indicates the presented token failed signature or expiry verification.
	ErrTokenInvalid = errors.New("invalid refresh token")
	// ErrTokenMismatch indicates a well-formed token that does not match the user's stored slot.
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

// UserStore persists the single refresh-token slot on the user record.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SaveRefreshToken(ctx context.Context, userID, token string) error
}

// Claims carries the identity embedded in an access token.
type Claims struct {
	UserID   string
	Username string
	Email    string
}

// Manager issues, rotates, and verifies signed session tokens. Refresh tokens are
// stateful: a token is only valid while it matches the slot stored on the user
// record, so each issue supersedes all previously issued refresh tokens.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	users UserStore
	now   func() time.Time
}

// NewManager constructs a Manager signing tokens with the provided secrets and TTLs.
func NewManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, users UserStore) *Manager {
	if users == nil {
		panic("auth: user store must not be nil")
	}
	return &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		users:         users,
		now:           time.Now,
	}
}

// Issue creates a new access/refresh token pair for the user and overwrites the
// stored refresh-token slot. The slot update is the only persisted mutation.
func (m *Manager) Issue(ctx context.Context, userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	now := m.now().UTC()
	accessExpiry := now.Add(m.accessTTL)
	refreshExpiry := now.Add(m.refreshTTL)

	accessToken, err := m.sign(jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"email":    user.Email,
		"iat":      now.Unix(),
		"exp":      accessExpiry.Unix(),
	}, m.accessSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := m.sign(jwt.MapClaims{
		"sub": user.ID,
		"iat": now.Unix(),
		"exp": refreshExpiry.Unix(),
	}, m.refreshSecret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := m.users.SaveRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Rotate exchanges a presented refresh token for a fresh pair. The presented
// token must verify against the refresh secret and match the slot currently
// stored on the user record; rotation immediately supersedes it.
func (m *Manager) Rotate(ctx context.Context, presented string) (models.TokenPair, error) {
	if presented == "" {
		return models.TokenPair{}, ErrTokenRequired
	}

	userID, err := m.verifyRefresh(presented)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return models.TokenPair{}, ErrTokenMismatch
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		return models.TokenPair{}, ErrTokenMismatch
	}

	return m.Issue(ctx, user.ID)
}

// Revoke clears the user's stored refresh-token slot. Revoking a user with no
// active session is a no-op.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := m.users.SaveRefreshToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// VerifyAccess validates an access token and returns the embedded identity.
func (m *Manager) VerifyAccess(tokenStr string) (Claims, error) {
	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.accessSecret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		return Claims{}, err
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid access token")
	}

	claims := Claims{}
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.UserID = sub
	}
	if username, ok := mapClaims["username"].(string); ok {
		claims.Username = username
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if claims.UserID == "" {
		return Claims{}, errors.New("access token missing subject")
	}

	return claims, nil
}

func (m *Manager) verifyRefresh(tokenStr string) (string, error) {
	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.refreshSecret, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil {
		return "", err
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token claims")
	}

	sub, ok := mapClaims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("token missing subject")
	}

	return sub, nil
}

func (m *Manager) sign(claims jwt.MapClaims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// WithNowFunc overrides the time source. Tests only.
func (m *Manager) WithNowFunc(now func() time.Time) {
	m.now = now
}
