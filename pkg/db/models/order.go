package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/types"
)

// CouponSnapshot freezes the coupon terms applied to an order at creation time,
// together with the discount they produced.
type CouponSnapshot struct {
	Code     *string           `gorm:"column:code"`
	Type     *enums.CouponType `gorm:"column:type;type:coupon_type"`
	Value    *decimal.Decimal  `gorm:"column:value;type:numeric(10,2)"`
	Discount *int64            `gorm:"column:discount"`
}

// Order is immutable after creation except for its status fields.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string                `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:orders_user_id_created_at_idx,priority:1"`
	Status          enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Subtotal        int64                 `gorm:"column:subtotal;not null"`
	Discount        int64                 `gorm:"column:discount;not null;default:0"`
	ShippingFee     int64                 `gorm:"column:shipping_fee;not null;default:0"`
	Tax             decimal.Decimal       `gorm:"column:tax;type:numeric(12,2);not null"`
	Total           decimal.Decimal       `gorm:"column:total;type:numeric(12,2);not null"`
	Coupon          CouponSnapshot        `gorm:"embedded;embeddedPrefix:coupon_"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Notes           *string               `gorm:"column:notes"`
	Items           []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ShippedAt       *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time            `gorm:"column:delivered_at"`
	CancelledAt     *time.Time            `gorm:"column:cancelled_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime;index:orders_user_id_created_at_idx,priority:2"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
