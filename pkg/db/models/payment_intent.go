package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// PaymentIntent records one payment attempt against an order.
type PaymentIntent struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index:payment_intents_order_id_idx"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Method        enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	GatewayRef    *string             `gorm:"column:gateway_ref"`
	FailureReason *string             `gorm:"column:failure_reason"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentIntent) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
