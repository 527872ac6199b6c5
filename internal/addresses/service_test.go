package addresses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.NewFromConn(conn))
	require.NoError(t, err)
	return svc, conn
}

func farmInput(label string) AddressInput {
	return AddressInput{
		Label:      label,
		FullName:   " Meena Rao ",
		Phone:      "9876543210",
		Line1:      "Survey No. 12, Canal Road",
		City:       "Nashik",
		State:      "Maharashtra",
		PostalCode: "422001",
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func defaults(t *testing.T, conn *gorm.DB, userID uuid.UUID) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	require.NoError(t, conn.Model(&models.Address{}).Where("user_id = ? AND is_default = ?", userID, true).Pluck("id", &ids).Error)
	return ids
}

func TestCreateFirstAddressBecomesDefault(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	user := dbtest.MustCreateUser(t, conn)

	first, err := svc.Create(ctx, user.ID, farmInput(""))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "home", first.Label)
	assert.Equal(t, "Meena Rao", first.FullName)
	assert.Equal(t, "IN", first.Country)

	second, err := svc.Create(ctx, user.ID, farmInput("Farm"))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
	assert.Equal(t, "farm", second.Label)

	third := farmInput("warehouse")
	third.IsDefault = true
	created, err := svc.Create(ctx, user.ID, third)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{created.ID}, defaults(t, conn, user.ID))

	list, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestCreateRejectsIncompleteAddress(t *testing.T) {
	svc, conn := newTestService(t)
	user := dbtest.MustCreateUser(t, conn)

	in := farmInput("")
	in.City = "   "
	_, err := svc.Create(context.Background(), user.ID, in)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestOwnershipChecks(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	owner := dbtest.MustCreateUser(t, conn)
	other := dbtest.MustCreateUser(t, conn)

	address, err := svc.Create(ctx, owner.ID, farmInput(""))
	require.NoError(t, err)

	_, err = svc.Update(ctx, other.ID, address.ID, farmInput("x"))
	requireCode(t, err, pkgerrors.CodeForbidden)
	requireCode(t, svc.Delete(ctx, other.ID, address.ID), pkgerrors.CodeForbidden)
	_, err = svc.SetDefault(ctx, other.ID, address.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = svc.FindForUser(ctx, other.ID, address.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = svc.FindForUser(ctx, owner.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	found, err := svc.FindForUser(ctx, owner.ID, address.ID)
	require.NoError(t, err)
	assert.Equal(t, "Nashik", found.City)
}

func TestUpdateAndSetDefault(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	user := dbtest.MustCreateUser(t, conn)

	home, err := svc.Create(ctx, user.ID, farmInput("home"))
	require.NoError(t, err)
	farm, err := svc.Create(ctx, user.ID, farmInput("farm"))
	require.NoError(t, err)

	in := farmInput("farm")
	in.City = "Pune"
	updated, err := svc.Update(ctx, user.ID, farm.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Pune", updated.City)
	assert.False(t, updated.IsDefault)

	in = farmInput("home")
	in.IsDefault = false
	stillDefault, err := svc.Update(ctx, user.ID, home.ID, in)
	require.NoError(t, err)
	assert.True(t, stillDefault.IsDefault)

	moved, err := svc.SetDefault(ctx, user.ID, farm.ID)
	require.NoError(t, err)
	assert.True(t, moved.IsDefault)
	assert.Equal(t, []uuid.UUID{farm.ID}, defaults(t, conn, user.ID))
}

func TestDeleteDefaultPromotesRemaining(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	user := dbtest.MustCreateUser(t, conn)

	home, err := svc.Create(ctx, user.ID, farmInput("home"))
	require.NoError(t, err)
	farm, err := svc.Create(ctx, user.ID, farmInput("farm"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID, home.ID))
	assert.Equal(t, []uuid.UUID{farm.ID}, defaults(t, conn, user.ID))

	require.NoError(t, svc.Delete(ctx, user.ID, farm.ID))
	list, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	requireCode(t, svc.Delete(ctx, user.ID, farm.ID), pkgerrors.CodeNotFound)
}
