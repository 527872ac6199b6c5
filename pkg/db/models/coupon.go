package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/enums"
)

// Coupon is a discount rule. Code is stored upper-cased and matched case-insensitively.
type Coupon struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code          string           `gorm:"column:code;not null;uniqueIndex:coupons_code_key"`
	Description   *string          `gorm:"column:description"`
	Type          enums.CouponType `gorm:"column:type;type:coupon_type;not null"`
	Value         decimal.Decimal  `gorm:"column:value;type:numeric(10,2);not null"`
	MinOrderValue *int64           `gorm:"column:min_order_value"`
	MaxDiscount   *int64           `gorm:"column:max_discount"`
	UsageLimit    *int             `gorm:"column:usage_limit"`
	UsedCount     int              `gorm:"column:used_count;not null;default:0"`
	ValidFrom     time.Time        `gorm:"column:valid_from;not null"`
	ValidUntil    time.Time        `gorm:"column:valid_until;not null"`
	IsActive      bool             `gorm:"column:is_active;not null"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
