package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/cart"
	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/internal/pricing"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
	"github.com/agromart/agromart-backend/pkg/pagination"
	"github.com/agromart/agromart-backend/pkg/types"
)

// Service defines checkout and order lifecycle operations.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, actor Viewer, orderID uuid.UUID, to enums.OrderStatus) (*OrderDTO, error)
	Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*types.Page[OrderDTO], error)
	AdminList(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*types.Page[OrderDTO], error)
	Invoice(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*InvoiceDTO, error)
	Transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, actor *outbox.ActorRef) error
}

type couponRedeemer interface {
	coupons.Validator
	coupons.Applier
}

// ServiceParams wires the order service dependencies. Addresses is optional;
// without it checkout only accepts inline shipping addresses.
type ServiceParams struct {
	Repo      Repository
	Carts     cart.CartRepository
	Coupons   couponRedeemer
	Stock     StockKeeper
	Outbox    outboxEmitter
	DB        txRunner
	Pricing   pricing.Calculator
	Addresses addressBook
	Logger    *logger.Logger
	Metrics   *metrics.Commerce
	Clock     func() time.Time
}

type service struct {
	repo      Repository
	carts     cart.CartRepository
	coupons   couponRedeemer
	stock     StockKeeper
	outbox    outboxEmitter
	tx        txRunner
	pricing   pricing.Calculator
	addresses addressBook
	logg      *logger.Logger
	metrics   *metrics.Commerce
	now       func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock keeper required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	calc := params.Pricing
	if calc == (pricing.Calculator{}) {
		calc = pricing.Default()
	}
	return &service{
		repo:      params.Repo,
		carts:     params.Carts,
		coupons:   params.Coupons,
		stock:     params.Stock,
		outbox:    params.Outbox,
		tx:        params.DB,
		pricing:   calc,
		addresses: params.Addresses,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", input.PaymentMethod))
	}
	address, err := s.resolveAddress(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	userCart, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(userCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	items, subtotal, err := freezeItems(userCart.Items)
	if err != nil {
		return nil, err
	}

	var applied *coupons.Result
	if code := strings.TrimSpace(input.CouponCode); code != "" {
		applied, err = s.coupons.Validate(ctx, code, subtotal)
		if err != nil {
			return nil, err
		}
	}
	var discount int64
	if applied != nil {
		discount = applied.Discount
	}

	breakdown, err := s.pricing.Breakdown(subtotal, discount)
	if err != nil {
		return nil, err
	}

	number, err := NewOrderNumber(s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order number")
	}

	order := &models.Order{
		OrderNumber:     number,
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   enums.PaymentStatusPending,
		Subtotal:        breakdown.Subtotal,
		Discount:        breakdown.Discount,
		ShippingFee:     breakdown.Shipping,
		Tax:             breakdown.Tax,
		Total:           breakdown.Total,
		ShippingAddress: address,
		Notes:           trimmedNotes(input.Notes),
		Items:           items,
	}
	if applied != nil {
		code, couponType, value := applied.Coupon.Code, applied.Coupon.Type, applied.Coupon.Value
		couponDiscount := breakdown.Discount
		order.Coupon = models.CouponSnapshot{Code: &code, Type: &couponType, Value: &value, Discount: &couponDiscount}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for _, item := range order.Items {
			if err := s.stock.Reserve(ctx, tx, item.ProductID, item.ProductName, item.Quantity); err != nil {
				return err
			}
		}
		if applied != nil {
			if err := s.coupons.Apply(ctx, tx, applied.Coupon.ID); err != nil {
				return err
			}
		}
		if err := s.carts.WithTx(tx).DeleteItems(ctx, userCart.ID, cartLineIDs(userCart.Items)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				UserID:        userID,
				PaymentMethod: order.PaymentMethod,
				Subtotal:      order.Subtotal,
				Discount:      order.Discount,
				ShippingFee:   order.ShippingFee,
				Tax:           order.Tax,
				Total:         order.Total,
				CouponCode:    order.Coupon.Code,
				Lines:         eventLines(order.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	total, _ := order.Total.Float64()
	s.metrics.OrderCreated(total)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"user_id":      userID.String(),
		"total":        order.Total.StringFixed(2),
	})
	s.logg.Info(logCtx, "order created")

	return NewOrderDTO(order), nil
}

func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	var (
		order *models.Order
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.load(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeInvalidStatusTransition,
				fmt.Sprintf("order cannot be cancelled while %s", order.Status)).
				WithDetails(map[string]any{"from": order.Status, "to": enums.OrderStatusCancelled})
		}
		from = order.Status
		return s.Transition(ctx, tx, order, enums.OrderStatusCancelled,
			&outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderTransition(string(from), string(enums.OrderStatusCancelled))
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	return NewOrderDTO(order), nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Viewer, orderID uuid.UUID, to enums.OrderStatus) (*OrderDTO, error) {
	if !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	var (
		order *models.Order
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.load(ctx, s.repo.WithTx(tx), orderID)
		if err != nil {
			return err
		}
		from = order.Status
		return s.Transition(ctx, tx, order, to, &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrderTransition(string(from), string(to))
	return NewOrderDTO(order), nil
}

// Transition validates and applies a status change inside tx. Entering cancelled
// or failed returns every line's stock. order is updated in place.
func (s *service) Transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, actor *outbox.ActorRef) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	from := order.Status
	if err := ValidateTransition(from, to); err != nil {
		return err
	}

	now := s.now().UTC()
	updates := map[string]any{}
	switch to {
	case enums.OrderStatusShipped:
		updates["shipped_at"] = now
		order.ShippedAt = &now
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
		order.DeliveredAt = &now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
		order.CancelledAt = &now
	}

	ok, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, from, to, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
			WithDetails(map[string]any{"expected": from})
	}
	order.Status = to
	order.UpdatedAt = now

	if restocks(to) {
		for _, item := range order.Items {
			if err := s.stock.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
	}

	event := outbox.DomainEvent{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		OccurredAt:    now,
	}
	if to == enums.OrderStatusCancelled {
		event.EventType = enums.EventOrderCanceled
		event.Data = payloads.OrderCanceledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			From:        from,
			CanceledAt:  now,
			Restocked:   eventLines(order.Items),
		}
	} else {
		event.EventType = enums.EventOrderStatusChanged
		event.Data = payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			From:        from,
			To:          to,
			ChangedAt:   now,
		}
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.visible(ctx, viewer, orderID)
	if err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*types.Page[OrderDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListByUser(ctx, userID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toPage(rows, next), nil
}

func (s *service) AdminList(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*types.Page[OrderDTO], error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", *status))
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListAll(ctx, status, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toPage(rows, next), nil
}

// Invoice rebuilds the price breakdown from the frozen order lines.
func (s *service) Invoice(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*InvoiceDTO, error) {
	order, err := s.visible(ctx, viewer, orderID)
	if err != nil {
		return nil, err
	}

	lines := make([]InvoiceLine, 0, len(order.Items))
	var subtotal int64
	for _, item := range order.Items {
		subtotal += item.LineTotal
		lines = append(lines, InvoiceLine{
			Position:    item.Position,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	breakdown, err := s.pricing.Breakdown(subtotal, order.Discount)
	if err != nil {
		return nil, err
	}

	return &InvoiceDTO{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		IssuedAt:      order.CreatedAt,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		BillTo:        order.ShippingAddress,
		CouponCode:    order.Coupon.Code,
		Lines:         lines,
		Totals:        breakdown,
	}, nil
}

func (s *service) visible(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != viewer.UserID && !viewer.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) resolveAddress(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (types.ShippingAddress, error) {
	switch {
	case input.AddressID != nil && input.ShippingAddress != nil:
		return types.ShippingAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "provide either address_id or shipping_address, not both")
	case input.AddressID != nil:
		if s.addresses == nil {
			return types.ShippingAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "saved addresses are not available")
		}
		saved, err := s.addresses.FindForUser(ctx, userID, *input.AddressID)
		if err != nil {
			if pkgerrors.As(err) != nil {
				return types.ShippingAddress{}, err
			}
			return types.ShippingAddress{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}
		return snapshotAddress(saved), nil
	case input.ShippingAddress != nil:
		address := input.ShippingAddress.Normalize()
		if !address.IsComplete() {
			return types.ShippingAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete")
		}
		return address, nil
	default:
		return types.ShippingAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
}

// freezeItems copies name and price off each cart line. Lines whose product is
// gone, inactive or short on stock fail the whole checkout.
func freezeItems(lines []models.CartItem) ([]models.OrderItem, int64, error) {
	items := make([]models.OrderItem, 0, len(lines))
	var subtotal int64
	for i, line := range lines {
		product := line.Product
		if product == nil || !product.IsActive {
			return nil, 0, pkgerrors.New(pkgerrors.CodeOutOfStock, "a product in your cart is no longer available").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		if line.Quantity > product.Stock {
			return nil, 0, pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("%s is out of stock", product.Name)).
				WithDetails(map[string]any{
					"product_id": product.ID,
					"requested":  line.Quantity,
					"available":  product.Stock,
				})
		}
		lineTotal := product.Price * int64(line.Quantity)
		subtotal += lineTotal
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    line.Quantity,
			LineTotal:   lineTotal,
			Position:    i + 1,
		})
	}
	return items, subtotal, nil
}

func cartLineIDs(lines []models.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
	}
	return ids
}

func snapshotAddress(a *models.Address) types.ShippingAddress {
	return types.ShippingAddress{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}.Normalize()
}

func eventLines(items []models.OrderItem) []payloads.OrderLine {
	out := make([]payloads.OrderLine, 0, len(items))
	for _, item := range items {
		out = append(out, payloads.OrderLine{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return out
}

func toPage(rows []models.Order, next string) *types.Page[OrderDTO] {
	items := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewOrderDTO(&rows[i]))
	}
	return &types.Page[OrderDTO]{Items: items, NextCursor: next}
}

func trimmedNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	value := strings.TrimSpace(*notes)
	if value == "" {
		return nil
	}
	return &value
}
