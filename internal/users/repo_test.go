package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/enums"
)

func TestRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	phone := "  "
	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        "  Farmer@Example.com ",
		PasswordHash: "hash",
		Name:         " Ravi Kumar ",
		Phone:        &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "farmer@example.com", user.Email)
	assert.Equal(t, "Ravi Kumar", user.Name)
	assert.Equal(t, enums.UserRoleCustomer, user.Role)
	assert.True(t, user.IsActive)
	assert.Nil(t, user.Phone)

	found, err := repo.FindByEmail(ctx, "FARMER@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	_, err := repo.Create(ctx, CreateUserDTO{Email: "a@example.com", PasswordHash: "h", Name: "A"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, CreateUserDTO{Email: "A@example.com", PasswordHash: "h", Name: "B"})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, EmailUniqueConstraint))
}

func TestRepositoryUpdates(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	user := dbtest.MustCreateUser(t, conn)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdateRole(ctx, user.ID, string(enums.UserRoleAdmin)))

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	assert.True(t, at.Equal(reloaded.LastLoginAt.UTC()))
	assert.Equal(t, enums.UserRoleAdmin, reloaded.Role)

	assert.ErrorIs(t, repo.UpdateRole(ctx, uuid.New(), "admin"), gorm.ErrRecordNotFound)
}

func TestFromModelOmitsPassword(t *testing.T) {
	dto := FromModel(CreateUserDTO{Email: "x@y.z", PasswordHash: "secret", Name: "X"}.ToModel())
	assert.Equal(t, "x@y.z", dto.Email)
	assert.Nil(t, FromModel(nil))
}
