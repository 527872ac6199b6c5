package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/security"
)

func testHasher() *security.Hasher {
	return security.NewHasher(config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
}

func TestHashAndVerifyPassword(t *testing.T) {
	hasher := testHasher()

	hash, err := hasher.Hash("very-secure-password1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := hasher.Verify("very-secure-password1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("bogus-password1", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := hasher.Hash("very-secure-password1")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ per hash")
}

func TestVerifyAcrossCostSettings(t *testing.T) {
	old := security.NewHasher(config.PasswordConfig{ArgonMemoryKB: 16 * 1024, ArgonTime: 2, ArgonParallelism: 2, ArgonSaltLen: 16, ArgonKeyLen: 32})
	hash, err := old.Hash("harvest2024")
	require.NoError(t, err)

	ok, err := testHasher().Verify("harvest2024", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, encoded := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=8,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8,t=1,p=1$$a2V5",
	} {
		_, err := testHasher().Verify("irrelevant", encoded)
		assert.ErrorIs(t, err, security.ErrInvalidHash, encoded)
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	assert.NoError(t, security.CheckPasswordPolicy("seedling42"))
	assert.Error(t, security.CheckPasswordPolicy("short1"))
	assert.Error(t, security.CheckPasswordPolicy("onlyletters"))
	assert.Error(t, security.CheckPasswordPolicy("1234567890"))
	assert.Error(t, security.CheckPasswordPolicy(strings.Repeat("a1", 65)))
}
