package payments

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/cart"
	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/internal/orders"
	product "github.com/agromart/agromart-backend/internal/products"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/types"
)

type stubGateway struct {
	result ChargeResult
	err    error
	calls  int
	// during runs while the charge is in flight.
	during func()
}

func (g *stubGateway) Charge(context.Context, ChargeRequest) (ChargeResult, error) {
	g.calls++
	if g.during != nil {
		g.during()
	}
	return g.result, g.err
}

type fixture struct {
	conn    *gorm.DB
	orders  orders.Service
	svc     Service
	gateway *stubGateway
	user    *models.User
	product *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "payments-test", Output: io.Discard})
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	orderRepo := orders.NewRepository(conn)
	txRunner := db.NewFromConn(conn)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:    orderRepo,
		Carts:   cart.NewRepository(conn),
		Coupons: couponSvc,
		Stock:   product.NewInventory(product.NewRepository(conn)),
		Outbox:  emitter,
		DB:      txRunner,
		Logger:  logg,
	})
	require.NoError(t, err)

	gateway := &stubGateway{result: ChargeResult{Approved: true, Reference: "mock_ref"}}
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Orders:  orderRepo,
		Flow:    orderSvc,
		Gateway: gateway,
		Outbox:  emitter,
		DB:      txRunner,
		Logger:  logg,
	})
	require.NoError(t, err)

	return &fixture{
		conn:    conn,
		orders:  orderSvc,
		svc:     svc,
		gateway: gateway,
		user:    dbtest.MustCreateUser(t, conn),
		product: dbtest.MustCreateProduct(t, conn, 100, 5),
	}
}

func (f *fixture) placeOrder(t *testing.T, method enums.PaymentMethod) *orders.OrderDTO {
	t.Helper()
	userCart := models.Cart{UserID: f.user.ID}
	require.NoError(t, f.conn.Omit("Items").Create(&userCart).Error)
	require.NoError(t, f.conn.Create(&models.CartItem{CartID: userCart.ID, ProductID: f.product.ID, Quantity: 2}).Error)

	order, err := f.orders.CreateOrder(context.Background(), f.user.ID, orders.CreateOrderInput{
		ShippingAddress: &types.ShippingAddress{
			FullName:   "Meena Patel",
			Phone:      "9123456780",
			Line1:      "Plot 4, APMC Yard",
			City:       "Rajkot",
			State:      "Gujarat",
			PostalCode: "360001",
		},
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) reloadOrder(t *testing.T, id uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", id).Error)
	return &order
}

func (f *fixture) eventCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestPaySuccess(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodCard)

	intent, err := f.svc.Pay(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, intent.Status)
	assert.Equal(t, enums.OrderStatusProcessing, intent.OrderStatus)
	require.NotNil(t, intent.GatewayRef)
	assert.Equal(t, "mock_ref", *intent.GatewayRef)
	assert.True(t, order.Total.Equal(intent.Amount))

	stored := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
	assert.Equal(t, enums.PaymentStatusSucceeded, stored.PaymentStatus)
	assert.Equal(t, 3, dbtest.ReloadProduct(t, f.conn, f.product.ID).Stock)
	assert.Equal(t, int64(1), f.eventCount(t, enums.EventPaymentSucceeded))

	status, err := f.svc.Status(context.Background(), f.user.ID, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusSucceeded, status.Status)

	_, err = f.svc.Pay(context.Background(), f.user.ID, order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestPayDeclineFailsOrderAndRestocks(t *testing.T) {
	f := newFixture(t)
	f.gateway.result = ChargeResult{Approved: false, DeclineReason: "insufficient_funds"}
	order := f.placeOrder(t, enums.PaymentMethodUPI)
	assert.Equal(t, 3, dbtest.ReloadProduct(t, f.conn, f.product.ID).Stock)

	intent, err := f.svc.Pay(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, intent.Status)
	assert.Equal(t, enums.OrderStatusFailed, intent.OrderStatus)
	require.NotNil(t, intent.FailureReason)
	assert.Equal(t, "insufficient_funds", *intent.FailureReason)

	stored := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusFailed, stored.Status)
	assert.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)
	assert.Equal(t, 5, dbtest.ReloadProduct(t, f.conn, f.product.ID).Stock)
	assert.Equal(t, int64(1), f.eventCount(t, enums.EventPaymentFailed))
}

func TestPayApprovedAfterCancelDoesNotMarkOrderPaid(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodCard)
	f.gateway.during = func() {
		_, err := f.orders.CancelOrder(context.Background(), f.user.ID, order.ID)
		require.NoError(t, err)
	}

	intent, err := f.svc.Pay(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, intent.Status)
	assert.Equal(t, enums.OrderStatusCancelled, intent.OrderStatus)
	require.NotNil(t, intent.FailureReason)
	assert.Equal(t, orderClosedReason, *intent.FailureReason)
	require.NotNil(t, intent.GatewayRef)
	assert.Equal(t, "mock_ref", *intent.GatewayRef)

	stored := f.reloadOrder(t, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.NotEqual(t, enums.PaymentStatusSucceeded, stored.PaymentStatus)
	assert.Equal(t, 5, dbtest.ReloadProduct(t, f.conn, f.product.ID).Stock)
	assert.Zero(t, f.eventCount(t, enums.EventPaymentSucceeded))
	assert.Equal(t, int64(1), f.eventCount(t, enums.EventPaymentFailed))
}

func TestPayDeclinedAfterCancelSettlesIntent(t *testing.T) {
	f := newFixture(t)
	f.gateway.result = ChargeResult{Approved: false, DeclineReason: "insufficient_funds"}
	order := f.placeOrder(t, enums.PaymentMethodUPI)
	f.gateway.during = func() {
		_, err := f.orders.CancelOrder(context.Background(), f.user.ID, order.ID)
		require.NoError(t, err)
	}

	intent, err := f.svc.Pay(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, intent.Status)
	assert.Equal(t, enums.OrderStatusCancelled, intent.OrderStatus)
	require.NotNil(t, intent.FailureReason)
	assert.Equal(t, "insufficient_funds", *intent.FailureReason)
	assert.Nil(t, intent.GatewayRef)

	status, err := f.svc.Status(context.Background(), f.user.ID, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, status.Status)
	assert.Equal(t, enums.OrderStatusCancelled, f.reloadOrder(t, order.ID).Status)
	assert.Equal(t, 5, dbtest.ReloadProduct(t, f.conn, f.product.ID).Stock)
}

func TestPayGatewayErrorIsTreatedAsDecline(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = errors.New("connection reset")
	order := f.placeOrder(t, enums.PaymentMethodNetBanking)

	intent, err := f.svc.Pay(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, intent.Status)
	require.NotNil(t, intent.FailureReason)
	assert.Equal(t, "gateway_error", *intent.FailureReason)
}

func TestPayCashOnDeliverySkipsGateway(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodCOD)

	intent, err := f.svc.Pay(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, intent.Status)
	assert.Equal(t, enums.OrderStatusProcessing, intent.OrderStatus)
	assert.Zero(t, f.gateway.calls)
	assert.Equal(t, enums.OrderStatusProcessing, f.reloadOrder(t, order.ID).Status)
}

func TestPayAccessChecks(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodCard)

	_, err := f.svc.Pay(context.Background(), uuid.New(), order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Pay(context.Background(), f.user.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	intent, err := f.svc.Pay(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Status(context.Background(), uuid.New(), intent.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Status(context.Background(), f.user.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestPayCancelledOrderIsRejected(t *testing.T) {
	f := newFixture(t)
	order := f.placeOrder(t, enums.PaymentMethodCard)
	_, err := f.orders.CancelOrder(context.Background(), f.user.ID, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Pay(context.Background(), f.user.ID, order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Zero(t, f.gateway.calls)
}
