package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// OrderLine is the frozen line summary carried by order events.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
}

// OrderCreatedEvent is emitted once checkout commits.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Subtotal      int64               `json:"subtotal"`
	Discount      int64               `json:"discount"`
	ShippingFee   int64               `json:"shipping_fee"`
	Tax           decimal.Decimal     `json:"tax"`
	Total         decimal.Decimal     `json:"total"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
	Lines         []OrderLine         `json:"lines"`
}

// OrderCanceledEvent is emitted when an order is cancelled and its stock restored.
type OrderCanceledEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	From        enums.OrderStatus `json:"from"`
	CanceledAt  time.Time         `json:"canceled_at"`
	Restocked   []OrderLine       `json:"restocked"`
}

// OrderStatusChangedEvent covers every other status transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uuid.UUID         `json:"user_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ChangedAt   time.Time         `json:"changed_at"`
}

// PaymentStatusEvent reports the outcome of a payment attempt.
type PaymentStatusEvent struct {
	PaymentIntentID uuid.UUID           `json:"payment_intent_id"`
	OrderID         uuid.UUID           `json:"order_id"`
	UserID          uuid.UUID           `json:"user_id"`
	Method          enums.PaymentMethod `json:"method"`
	Status          enums.PaymentStatus `json:"status"`
	Amount          decimal.Decimal     `json:"amount"`
	GatewayRef      *string             `json:"gateway_ref,omitempty"`
	FailureReason   *string             `json:"failure_reason,omitempty"`
}
