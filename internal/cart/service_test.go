package cart

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
)

type gormProducts struct {
	db      *gorm.DB
	failFor map[uuid.UUID]error
}

func (p *gormProducts) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if err, ok := p.failFor[id]; ok {
		return nil, err
	}
	var product models.Product
	if err := p.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	products *gormProducts
	registry *prometheus.Registry
	user     *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	products := &gormProducts{db: conn, failFor: map[uuid.UUID]error{}}
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	registry := prometheus.NewRegistry()

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Products: products,
		Coupons:  couponSvc,
		DB:       db.NewFromConn(conn),
		Logger:   logger.New(logger.Options{ServiceName: "cart-test", Output: io.Discard}),
		Metrics:  metrics.NewCommerce(registry),
	})
	require.NoError(t, err)

	return &fixture{
		conn:     conn,
		svc:      svc,
		products: products,
		registry: registry,
		user:     dbtest.MustCreateUser(t, conn),
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestViewCreatesEmptyCartLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.View(ctx, f.user.ID, "")
	require.NoError(t, err)
	assert.Empty(t, first.Items)
	assert.Zero(t, first.Total)

	second, err := f.svc.View(ctx, f.user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("user_id = ?", f.user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddItemSumsQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, f.conn, 500, 5)

	_, err := f.svc.AddItem(ctx, f.user.ID, product.ID, 2)
	require.NoError(t, err)
	view, err := f.svc.AddItem(ctx, f.user.ID, product.ID, 1)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, int64(1500), view.Items[0].LineTotal)
	assert.Equal(t, int64(1500), view.Subtotal)
	assert.Equal(t, int64(1500), view.Total)
	assert.Equal(t, 3, view.ItemCount)
}

func TestAddItemRejectsBadQuantity(t *testing.T) {
	f := newFixture(t)
	product := dbtest.MustCreateProduct(t, f.conn, 500, 5)

	_, err := f.svc.AddItem(context.Background(), f.user.ID, product.ID, 0)
	requireCode(t, err, pkgerrors.CodeInvalidQuantity)
}

func TestAddItemOutOfStockLeavesCartUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, f.conn, 500, 3)

	_, err := f.svc.AddItem(ctx, f.user.ID, product.ID, 2)
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, f.user.ID, product.ID, 2)
	requireCode(t, err, pkgerrors.CodeOutOfStock)

	view, err := f.svc.View(ctx, f.user.ID, "")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestAddItemUnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AddItem(context.Background(), f.user.ID, uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, f.conn, 250, 4)

	view, err := f.svc.AddItem(ctx, f.user.ID, product.ID, 1)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	view, err = f.svc.UpdateQuantity(ctx, f.user.ID, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[0].Quantity)
	assert.Equal(t, int64(1000), view.Subtotal)

	_, err = f.svc.UpdateQuantity(ctx, f.user.ID, itemID, 5)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	_, err = f.svc.UpdateQuantity(ctx, f.user.ID, itemID, -1)
	requireCode(t, err, pkgerrors.CodeInvalidQuantity)

	view, err = f.svc.UpdateQuantity(ctx, f.user.ID, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestRemoveItemIsScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, f.conn, 100, 10)
	other := dbtest.MustCreateUser(t, f.conn)

	view, err := f.svc.AddItem(ctx, f.user.ID, product.ID, 1)
	require.NoError(t, err)
	itemID := view.Items[0].ID

	_, err = f.svc.View(ctx, other.ID, "")
	require.NoError(t, err)
	_, err = f.svc.RemoveItem(ctx, other.ID, itemID)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.RemoveItem(ctx, f.user.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	view, err = f.svc.RemoveItem(ctx, f.user.ID, itemID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestClearEmptiesCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := dbtest.MustCreateProduct(t, f.conn, 100, 10)
	second := dbtest.MustCreateProduct(t, f.conn, 200, 10)

	_, err := f.svc.AddItem(ctx, f.user.ID, first.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.user.ID, second.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(ctx, f.user.ID))
	view, err := f.svc.View(ctx, f.user.ID, "")
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	require.NoError(t, f.svc.Clear(ctx, dbtest.MustCreateUser(t, f.conn).ID))
}

func TestViewPreviewsCouponWithoutConsumingIt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := dbtest.MustCreateProduct(t, f.conn, 1000, 10)
	coupon := dbtest.MustCreateCoupon(t, f.conn, enums.CouponTypePercentage, 10, func(c *models.Coupon) {
		limit := 1
		c.UsageLimit = &limit
	})

	_, err := f.svc.AddItem(ctx, f.user.ID, product.ID, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		view, err := f.svc.View(ctx, f.user.ID, coupon.Code)
		require.NoError(t, err)
		assert.Equal(t, int64(2000), view.Subtotal)
		assert.Equal(t, int64(200), view.Discount)
		assert.Equal(t, int64(1800), view.Total)
		require.NotNil(t, view.Coupon)
		assert.Equal(t, coupon.Code, view.Coupon.Code)
	}

	var reloaded models.Coupon
	require.NoError(t, f.conn.First(&reloaded, "id = ?", coupon.ID).Error)
	assert.Zero(t, reloaded.UsedCount)
}

func TestViewPropagatesCouponErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.View(context.Background(), f.user.ID, "NOPE")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestComputeTotalsFloorsAtZero(t *testing.T) {
	items := []models.CartItem{
		{Quantity: 2, Product: &models.Product{Price: 100}},
		{Quantity: 1, Product: &models.Product{Price: 50}},
		{Quantity: 3},
	}

	totals := ComputeTotals(items, 40)
	assert.Equal(t, Totals{Subtotal: 250, Discount: 40, Total: 210}, totals)

	totals = ComputeTotals(items, 400)
	assert.Zero(t, totals.Total)
}
