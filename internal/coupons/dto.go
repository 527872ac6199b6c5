package coupons

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/internal/pricing"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

// CreateCouponInput carries the admin payload for a new coupon.
type CreateCouponInput struct {
	Code          string           `json:"code" validate:"required,min=3,max=32,alphanum"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=255"`
	Type          enums.CouponType `json:"type" validate:"required,oneof=percentage fixed"`
	Value         decimal.Decimal  `json:"value"`
	MinOrderValue *int64           `json:"min_order_value,omitempty" validate:"omitempty,min=0"`
	MaxDiscount   *int64           `json:"max_discount,omitempty" validate:"omitempty,min=0"`
	UsageLimit    *int             `json:"usage_limit,omitempty" validate:"omitempty,min=0"`
	ValidFrom     time.Time        `json:"valid_from" validate:"required"`
	ValidUntil    time.Time        `json:"valid_until" validate:"required"`
	IsActive      *bool            `json:"is_active,omitempty"`
}

// UpdateCouponInput carries a partial admin update; nil fields are untouched.
type UpdateCouponInput struct {
	Description   *string          `json:"description,omitempty" validate:"omitempty,max=255"`
	Value         *decimal.Decimal `json:"value,omitempty"`
	MinOrderValue *int64           `json:"min_order_value,omitempty" validate:"omitempty,min=0"`
	MaxDiscount   *int64           `json:"max_discount,omitempty" validate:"omitempty,min=0"`
	UsageLimit    *int             `json:"usage_limit,omitempty" validate:"omitempty,min=0"`
	ValidFrom     *time.Time       `json:"valid_from,omitempty"`
	ValidUntil    *time.Time       `json:"valid_until,omitempty"`
	IsActive      *bool            `json:"is_active,omitempty"`

	// Clear* remove an optional limit; they win over the matching value.
	ClearMinOrderValue bool `json:"clear_min_order_value,omitempty"`
	ClearMaxDiscount   bool `json:"clear_max_discount,omitempty"`
	ClearUsageLimit    bool `json:"clear_usage_limit,omitempty"`
}

type CouponDTO struct {
	ID            uuid.UUID        `json:"id"`
	Code          string           `json:"code"`
	Description   *string          `json:"description,omitempty"`
	Type          enums.CouponType `json:"type"`
	Value         decimal.Decimal  `json:"value"`
	MinOrderValue *int64           `json:"min_order_value,omitempty"`
	MaxDiscount   *int64           `json:"max_discount,omitempty"`
	UsageLimit    *int             `json:"usage_limit,omitempty"`
	UsedCount     int              `json:"used_count"`
	ValidFrom     time.Time        `json:"valid_from"`
	ValidUntil    time.Time        `json:"valid_until"`
	IsActive      bool             `json:"is_active"`
	CreatedAt     time.Time        `json:"created_at"`
}

func NewCouponDTO(c *models.Coupon) *CouponDTO {
	if c == nil {
		return nil
	}
	return &CouponDTO{
		ID:            c.ID,
		Code:          c.Code,
		Description:   c.Description,
		Type:          c.Type,
		Value:         c.Value,
		MinOrderValue: c.MinOrderValue,
		MaxDiscount:   c.MaxDiscount,
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
		ValidFrom:     c.ValidFrom,
		ValidUntil:    c.ValidUntil,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt,
	}
}

// ValidationDTO is the preview returned when a shopper checks a code.
type ValidationDTO struct {
	Code        string           `json:"code"`
	Type        enums.CouponType `json:"type"`
	Value       decimal.Decimal  `json:"value"`
	Subtotal    int64            `json:"subtotal"`
	Discount    int64            `json:"discount"`
	NetSubtotal int64            `json:"net_subtotal"`
}

func NewValidationDTO(result *Result, subtotal int64) *ValidationDTO {
	return &ValidationDTO{
		Code:        result.Coupon.Code,
		Type:        result.Coupon.Type,
		Value:       result.Coupon.Value,
		Subtotal:    subtotal,
		Discount:    result.Discount,
		NetSubtotal: pricing.NetTotal(subtotal, result.Discount),
	}
}
