package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/enums"
	redisclient "github.com/agromart/agromart-backend/pkg/redis"
)

const (
	refreshSecretBytes = 32
	tokenSeparator     = "."
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SessionKey(accessID string) string
}

// Identity is who a session belongs to.
type Identity struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
}

// Session is a freshly issued access id with its opaque refresh token.
// The access id doubles as the access token jti.
type Session struct {
	AccessID     string
	RefreshToken string
}

type record struct {
	Identity
	SecretHash string    `json:"secret_hash"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Checker is the read-only view used by the auth middleware.
type Checker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Manager issues, rotates and revokes refresh sessions kept in Redis. Only a
// hash of the refresh secret is stored.
type Manager struct {
	store sessionStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager builds a manager whose sessions live for the refresh token TTL.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(store sessionStore, cfg config.JWTConfig) (*Manager, error) {
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Issue opens a new session for the identity.
func (m *Manager) Issue(ctx context.Context, identity Identity) (Session, error) {
	if identity.UserID == uuid.Nil {
		return Session{}, fmt.Errorf("user id is required")
	}
	if !identity.Role.IsValid() {
		return Session{}, fmt.Errorf("invalid role %q", identity.Role)
	}

	accessID := uuid.NewString()
	secret, err := newSecret()
	if err != nil {
		return Session{}, err
	}
	body, err := json.Marshal(record{
		Identity:   identity,
		SecretHash: hashSecret(secret),
		IssuedAt:   m.now().UTC(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, m.store.SessionKey(accessID), string(body), m.ttl); err != nil {
		return Session{}, err
	}
	return Session{AccessID: accessID, RefreshToken: accessID + tokenSeparator + secret}, nil
}

// Rotate consumes a refresh token and opens a replacement session for the
// same identity. A token can be rotated once.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (Session, Identity, error) {
	accessID, secret, ok := splitToken(refreshToken)
	if !ok {
		return Session{}, Identity{}, ErrInvalidRefreshToken
	}

	key := m.store.SessionKey(accessID)
	rec, err := m.load(ctx, key)
	if err != nil {
		return Session{}, Identity{}, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.SecretHash), []byte(hashSecret(secret))) != 1 {
		return Session{}, Identity{}, ErrInvalidRefreshToken
	}
	if err := m.store.Del(ctx, key); err != nil {
		return Session{}, Identity{}, err
	}

	next, err := m.Issue(ctx, rec.Identity)
	if err != nil {
		return Session{}, Identity{}, err
	}
	return next, rec.Identity, nil
}

// Revoke ends the session behind an access id. Unknown ids are ignored.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.store.Del(ctx, m.store.SessionKey(accessID))
}

// HasSession reports whether the access id still has a live session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, nil
	}
	if _, err := m.store.Get(ctx, m.store.SessionKey(accessID)); err != nil {
		if errors.Is(err, redisclient.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) load(ctx context.Context, key string) (*record, error) {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, ErrInvalidRefreshToken
	}
	return &rec, nil
}

func splitToken(token string) (string, string, bool) {
	accessID, secret, found := strings.Cut(strings.TrimSpace(token), tokenSeparator)
	if !found || accessID == "" || secret == "" {
		return "", "", false
	}
	if _, err := uuid.Parse(accessID); err != nil {
		return "", "", false
	}
	return accessID, secret, true
}

func newSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
