package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/enums"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "agromart", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: userID, Role: enums.UserRoleAdmin, JTI: "session-1"})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.UserRoleAdmin, claims.Role)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "session-1", claims.ID)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintAccessTokenGeneratesJTI(t *testing.T) {
	token, err := MintAccessToken(testConfig(), time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testConfig(), token)
	require.NoError(t, err)
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)
	assert.False(t, claims.IsAdmin())
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token+"x")
	assert.Error(t, err)

	other := cfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)

	other = cfg
	other.Secret = "different"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer, JTI: "old"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "old", claims.ID)
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testConfig()
	cases := map[string]struct {
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		"missing role":   {cfg, AccessTokenPayload{UserID: uuid.New()}},
		"unknown role":   {cfg, AccessTokenPayload{UserID: uuid.New(), Role: "owner"}},
		"missing user":   {cfg, AccessTokenPayload{Role: enums.UserRoleCustomer}},
		"missing secret": {config.JWTConfig{Issuer: "agromart", ExpirationMinutes: 5}, AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer}},
		"zero ttl":       {config.JWTConfig{Secret: "s", Issuer: "agromart"}, AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := MintAccessToken(tc.cfg, time.Now(), tc.payload)
			assert.Error(t, err)
		})
	}
}
