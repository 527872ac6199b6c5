package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/internal/pricing"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/types"
)

// CreateOrderInput is the checkout payload. Exactly one of ShippingAddress or
// AddressID must be supplied.
type CreateOrderInput struct {
	ShippingAddress *types.ShippingAddress `json:"shipping_address,omitempty" validate:"omitempty"`
	AddressID       *uuid.UUID             `json:"address_id,omitempty"`
	PaymentMethod   enums.PaymentMethod    `json:"payment_method" validate:"required"`
	CouponCode      string                 `json:"coupon_code,omitempty" validate:"omitempty,max=64"`
	Notes           *string                `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// UpdateStatusInput is the admin status change payload.
type UpdateStatusInput struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// Viewer identifies who is reading an order.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (v Viewer) isAdmin() bool {
	return v.Role == enums.UserRoleAdmin
}

type OrderItemDTO struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	UnitPrice   int64     `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	LineTotal   int64     `json:"line_total"`
}

type CouponSnapshotDTO struct {
	Code     string           `json:"code"`
	Type     enums.CouponType `json:"type"`
	Value    decimal.Decimal  `json:"value"`
	Discount int64            `json:"discount"`
}

// OrderDTO is the order payload returned to shoppers and admins.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"order_number"`
	UserID          uuid.UUID             `json:"user_id"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentMethod   enums.PaymentMethod   `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus   `json:"payment_status"`
	Subtotal        int64                 `json:"subtotal"`
	Discount        int64                 `json:"discount"`
	ShippingFee     int64                 `json:"shipping_fee"`
	Tax             decimal.Decimal       `json:"tax"`
	Total           decimal.Decimal       `json:"total"`
	Coupon          *CouponSnapshotDTO    `json:"coupon,omitempty"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Notes           *string               `json:"notes,omitempty"`
	Items           []OrderItemDTO        `json:"items"`
	ShippedAt       *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time            `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func NewOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		Subtotal:        order.Subtotal,
		Discount:        order.Discount,
		ShippingFee:     order.ShippingFee,
		Tax:             order.Tax,
		Total:           order.Total,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if snap := order.Coupon; snap.Code != nil && snap.Type != nil && snap.Value != nil {
		dto.Coupon = &CouponSnapshotDTO{Code: *snap.Code, Type: *snap.Type, Value: *snap.Value, Discount: order.Discount}
		if snap.Discount != nil {
			dto.Coupon.Discount = *snap.Discount
		}
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	return dto
}

type InvoiceLine struct {
	Position    int    `json:"position"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
}

// InvoiceDTO is the printable breakdown of a placed order.
type InvoiceDTO struct {
	OrderID         uuid.UUID             `json:"order_id"`
	OrderNumber     string                `json:"order_number"`
	IssuedAt        time.Time             `json:"issued_at"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentMethod   enums.PaymentMethod   `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus   `json:"payment_status"`
	BillTo          types.ShippingAddress `json:"bill_to"`
	CouponCode      *string               `json:"coupon_code,omitempty"`
	Lines           []InvoiceLine         `json:"lines"`
	Totals          pricing.Breakdown     `json:"totals"`
}
