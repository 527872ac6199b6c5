package auth

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/users"
	pkgAuth "github.com/agromart/agromart-backend/pkg/auth"
	"github.com/agromart/agromart-backend/pkg/auth/session"
	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/security"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "agromart", ExpirationMinutes: 15}

type stubUserRepo struct {
	mu        sync.Mutex
	byEmail   map[string]*models.User
	createErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byEmail: map[string]*models.User{}}
}

func (s *stubUserRepo) Create(_ context.Context, dto users.CreateUserDTO) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	s.byEmail[user.Email] = user
	return user, nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byEmail {
		if user.ID == id {
			user.LastLoginAt = &at
		}
	}
	return nil
}

func (s *stubUserRepo) UpdateRole(_ context.Context, id uuid.UUID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byEmail {
		if user.ID == id {
			user.Role = enums.UserRole(role)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type stubSessions struct {
	live    map[string]session.Identity
	tokens  map[string]string
	revoked []string
}

func newStubSessions() *stubSessions {
	return &stubSessions{live: map[string]session.Identity{}, tokens: map[string]string{}}
}

func (s *stubSessions) Issue(_ context.Context, identity session.Identity) (session.Session, error) {
	id := uuid.NewString()
	token := id + ".secret"
	s.live[id] = identity
	s.tokens[token] = id
	return session.Session{AccessID: id, RefreshToken: token}, nil
}

func (s *stubSessions) Rotate(ctx context.Context, refreshToken string) (session.Session, session.Identity, error) {
	id, ok := s.tokens[refreshToken]
	if !ok {
		return session.Session{}, session.Identity{}, session.ErrInvalidRefreshToken
	}
	identity, ok := s.live[id]
	if !ok {
		return session.Session{}, session.Identity{}, session.ErrInvalidRefreshToken
	}
	delete(s.tokens, refreshToken)
	delete(s.live, id)
	next, err := s.Issue(ctx, identity)
	return next, identity, err
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	delete(s.live, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testHasher() *security.Hasher {
	return security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 8 * 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
}

type fixture struct {
	svc      Service
	repo     *stubUserRepo
	sessions *stubSessions
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := newStubUserRepo()
	sessions := newStubSessions()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		Hasher:         testHasher(),
		JWTConfig:      testJWT,
		Logger:         logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return fixture{svc: svc, repo: repo, sessions: sessions}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.svc.Register(ctx, RegisterRequest{Name: "Asha Patil", Email: " Asha@Farm.in ", Password: "greenfield9"})
	require.NoError(t, err)
	assert.Equal(t, "asha@farm.in", registered.User.Email)
	assert.Equal(t, enums.UserRoleCustomer, registered.User.Role)
	assert.Equal(t, "Bearer", registered.TokenType)
	assert.Equal(t, 900, registered.ExpiresIn)
	assert.NotContains(t, f.repo.byEmail["asha@farm.in"].PasswordHash, "greenfield9")

	resp, err := f.svc.Login(ctx, LoginRequest{Email: "ASHA@farm.in", Password: "greenfield9"})
	require.NoError(t, err)
	require.NotNil(t, resp.User.LastLoginAt)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleCustomer, claims.Role)
	assert.Contains(t, f.sessions.live, claims.ID)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.in", Password: "short"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Register(ctx, RegisterRequest{Name: "  ", Email: "a@b.in", Password: "longenough1"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.in", Password: "longenough1"})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterRequest{Name: "B", Email: "A@B.in", Password: "longenough1"})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestRegisterMapsUniqueViolation(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New(`ERROR: duplicate key value violates unique constraint "users_email_key"`)

	_, err := f.svc.Register(context.Background(), RegisterRequest{Name: "A", Email: "race@b.in", Password: "longenough1"})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.in", Password: "longenough1"})
	require.NoError(t, err)

	cases := map[string]LoginRequest{
		"wrong password": {Email: "a@b.in", Password: "longenough2"},
		"unknown email":  {Email: "nobody@b.in", Password: "longenough1"},
		"blank":          {},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, req)
			requireCode(t, err, pkgerrors.CodeUnauthorized)
			assert.True(t, strings.Contains(err.Error(), invalidCredentialsMessage))
		})
	}

	f.repo.byEmail["a@b.in"].IsActive = false
	_, err = f.svc.Login(ctx, LoginRequest{Email: "a@b.in", Password: "longenough1"})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRefreshRotatesAndPicksUpRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.in", Password: "longenough1"})
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	f.repo.byEmail["a@b.in"].Role = enums.UserRoleAdmin
	third, err := f.svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(testJWT, third.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, enums.UserRoleAdmin, f.sessions.live[claims.ID].Role)

	f.repo.byEmail["a@b.in"].IsActive = false
	_, err = f.svc.Refresh(ctx, third.RefreshToken)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	assert.Empty(t, f.sessions.live)
}

func TestLogoutAndMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.svc.Register(ctx, RegisterRequest{Name: "A", Email: "a@b.in", Password: "longenough1"})
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)

	me, err := f.svc.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", me.Name)

	require.NoError(t, f.svc.Logout(ctx, claims.ID))
	assert.NotContains(t, f.sessions.live, claims.ID)
	_, err = f.svc.Refresh(ctx, resp.RefreshToken)
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	requireCode(t, f.svc.Logout(ctx, ""), pkgerrors.CodeUnauthorized)
	_, err = f.svc.Me(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestAdminBootstrapper(t *testing.T) {
	ctx := context.Background()
	repo := newStubUserRepo()
	boot, err := NewAdminBootstrapper(repo, testHasher())
	require.NoError(t, err)

	admin, created, err := boot.Ensure(ctx, AdminAccount{Email: "Ops@AgroMart.in", Password: "harvest2024"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enums.UserRoleAdmin, admin.Role)
	assert.Equal(t, "Administrator", admin.Name)

	again, created, err := boot.Ensure(ctx, AdminAccount{Email: "ops@agromart.in", Password: "ignored-pass1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)

	customer, err := repo.Create(ctx, users.CreateUserDTO{Email: "c@b.in", PasswordHash: "h", Name: "C"})
	require.NoError(t, err)
	promoted, created, err := boot.Ensure(ctx, AdminAccount{Email: "c@b.in"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, customer.ID, promoted.ID)
	assert.Equal(t, enums.UserRoleAdmin, promoted.Role)

	_, _, err = boot.Ensure(ctx, AdminAccount{Email: "new@b.in", Password: "weak"})
	requireCode(t, err, pkgerrors.CodeValidation)
}
