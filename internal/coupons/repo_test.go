package coupons

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

func TestRepositoryFindByCodeIgnoresCase(t *testing.T) {
	conn := dbtest.Open(t)
	coupon := dbtest.MustCreateCoupon(t, conn, enums.CouponTypeFixed, 100)
	repo := NewRepository(conn)

	found, err := repo.FindByCode(context.Background(), " "+strings.ToLower(coupon.Code)+" ")
	require.NoError(t, err)
	assert.Equal(t, coupon.ID, found.ID)
}

func TestRepositoryIncrementUsageRespectsLimit(t *testing.T) {
	conn := dbtest.Open(t)
	coupon := dbtest.MustCreateCoupon(t, conn, enums.CouponTypeFixed, 100, func(c *models.Coupon) {
		c.UsageLimit = ptr(1)
	})
	repo := NewRepository(conn)
	ctx := context.Background()

	ok, err := repo.IncrementUsage(ctx, coupon.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IncrementUsage(ctx, coupon.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.FindByID(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.UsedCount)
}

func TestApplyRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	coupon := dbtest.MustCreateCoupon(t, conn, enums.CouponTypePercentage, 10)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	rollback := pkgerrors.New(pkgerrors.CodeOutOfStock, "simulated stock failure")
	err = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Apply(ctx, tx, coupon.ID))
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	reloaded, err := repo.FindByID(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Zero(t, reloaded.UsedCount)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Apply(ctx, tx, coupon.ID)
	}))
	reloaded, err = repo.FindByID(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.UsedCount)
}

func TestCreateDuplicateCodeConflicts(t *testing.T) {
	conn := dbtest.Open(t)
	existing := dbtest.MustCreateCoupon(t, conn, enums.CouponTypeFixed, 100)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateCouponInput{
		Code:       strings.ToLower(existing.Code),
		Type:       enums.CouponTypeFixed,
		Value:      existing.Value,
		ValidFrom:  existing.ValidFrom,
		ValidUntil: existing.ValidUntil,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestUpdateKeepsUsageCommittedMeanwhile(t *testing.T) {
	conn := dbtest.Open(t)
	coupon := dbtest.MustCreateCoupon(t, conn, enums.CouponTypeFixed, 100, func(c *models.Coupon) {
		c.IsActive = false
		c.UsageLimit = ptr(3)
		c.MinOrderValue = ptr(int64(500))
	})
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	dbtest.OnNextQuery(t, conn, "coupons", func() {
		ok, err := repo.IncrementUsage(ctx, coupon.ID)
		require.NoError(t, err)
		require.True(t, ok)
	})

	updated, err := svc.Update(ctx, coupon.ID, UpdateCouponInput{
		IsActive:           ptr(true),
		ClearUsageLimit:    true,
		ClearMinOrderValue: true,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	reloaded, err := repo.FindByID(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.UsedCount)
	assert.Nil(t, reloaded.UsageLimit)
	assert.Nil(t, reloaded.MinOrderValue)
}

func TestUpdateUnknownCoupon(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), uuid.New(), UpdateCouponInput{IsActive: ptr(true)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
