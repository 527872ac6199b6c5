package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/pagination"
	"github.com/agromart/agromart-backend/pkg/types"
)

// Reason explains why an existing coupon cannot be used.
type Reason string

const (
	ReasonInactive          Reason = "inactive"
	ReasonNotYetValid       Reason = "not_yet_valid"
	ReasonExpired           Reason = "expired"
	ReasonUsageLimitReached Reason = "usage_limit_reached"
	ReasonBelowMinimum      Reason = "below_minimum"
)

var reasonMessages = map[Reason]string{
	ReasonInactive:          "coupon is not active",
	ReasonNotYetValid:       "coupon is not valid yet",
	ReasonExpired:           "coupon has expired",
	ReasonUsageLimitReached: "coupon usage limit has been reached",
	ReasonBelowMinimum:      "order subtotal is below the coupon minimum",
}

const couponCodeConstraint = "coupons_code_key"

// Result is a successful validation: the coupon and the discount it yields.
type Result struct {
	Coupon   *models.Coupon
	Discount int64
}

// Validator checks coupon applicability without side effects.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal int64) (*Result, error)
}

// Applier records one use of a coupon inside an open transaction.
type Applier interface {
	Apply(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error
}

// Service exposes validation plus coupon administration.
type Service interface {
	Validator
	Applier
	Create(ctx context.Context, input CreateCouponInput) (*CouponDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCouponInput) (*CouponDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CouponDTO, error)
	List(ctx context.Context, params pagination.Params, activeOnly bool) (*types.Page[CouponDTO], error)
}

// Option customizes the coupon service.
type Option func(*service)

// WithClock overrides the time source used for validity windows.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

type service struct {
	repo CouponRepository
	now  func() time.Time
}

// NewService builds a coupon service backed by repo.
func NewService(repo CouponRepository, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	s := &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) Validate(ctx context.Context, code string, subtotal int64) (*Result, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if subtotal < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative")
	}

	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("coupon %s not found", normalized))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if reason, ok := s.check(coupon, subtotal); !ok {
		return nil, invalid(coupon, reason)
	}

	return &Result{Coupon: coupon, Discount: Discount(coupon, subtotal)}, nil
}

// check applies the ordered rules and reports the first one violated.
func (s *service) check(coupon *models.Coupon, subtotal int64) (Reason, bool) {
	if !coupon.IsActive {
		return ReasonInactive, false
	}
	now := s.now()
	if now.Before(coupon.ValidFrom) {
		return ReasonNotYetValid, false
	}
	if now.After(coupon.ValidUntil) {
		return ReasonExpired, false
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return ReasonUsageLimitReached, false
	}
	if coupon.MinOrderValue != nil && subtotal < *coupon.MinOrderValue {
		return ReasonBelowMinimum, false
	}
	return "", true
}

func invalid(coupon *models.Coupon, reason Reason) *pkgerrors.Error {
	details := map[string]any{"reason": string(reason)}
	if reason == ReasonBelowMinimum && coupon.MinOrderValue != nil {
		details["min_order_value"] = *coupon.MinOrderValue
	}
	return pkgerrors.New(pkgerrors.CodeCouponInvalid, reasonMessages[reason]).WithDetails(details)
}

// Discount converts the coupon terms into a whole-unit discount for subtotal.
// Percentage discounts are capped by MaxDiscount and fixed discounts by the subtotal.
func Discount(coupon *models.Coupon, subtotal int64) int64 {
	if coupon == nil || subtotal <= 0 {
		return 0
	}
	base := decimal.NewFromInt(subtotal)

	var amount decimal.Decimal
	switch coupon.Type {
	case enums.CouponTypePercentage:
		amount = base.Mul(coupon.Value).Div(decimal.NewFromInt(100))
		if coupon.MaxDiscount != nil {
			amount = decimal.Min(amount, decimal.NewFromInt(*coupon.MaxDiscount))
		}
	case enums.CouponTypeFixed:
		amount = coupon.Value
	default:
		return 0
	}

	amount = decimal.Min(amount, base)
	if amount.IsNegative() {
		return 0
	}
	return amount.Round(0).IntPart()
}

func (s *service) Apply(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "coupon usage must be recorded inside a transaction")
	}
	applied, err := s.repo.WithTx(tx).IncrementUsage(ctx, couponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
	}
	if !applied {
		return pkgerrors.New(pkgerrors.CodeCouponInvalid, reasonMessages[ReasonUsageLimitReached]).
			WithDetails(map[string]any{"reason": string(ReasonUsageLimitReached)})
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateCouponInput) (*CouponDTO, error) {
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	coupon := &models.Coupon{
		Code:          code,
		Description:   trimmed(input.Description),
		Type:          input.Type,
		Value:         input.Value,
		MinOrderValue: input.MinOrderValue,
		MaxDiscount:   input.MaxDiscount,
		UsageLimit:    input.UsageLimit,
		ValidFrom:     input.ValidFrom.UTC(),
		ValidUntil:    input.ValidUntil.UTC(),
		IsActive:      true,
	}
	if input.IsActive != nil {
		coupon.IsActive = *input.IsActive
	}
	if err := validateTerms(coupon); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, coupon)
	if err != nil {
		if db.IsUniqueViolation(err, couponCodeConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("coupon %s already exists", code))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return NewCouponDTO(created), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateCouponInput) (*CouponDTO, error) {
	coupon, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// coupon is only used to validate the resulting terms; used_count is never written here.
	updates := map[string]any{}
	if input.Description != nil {
		coupon.Description = trimmed(input.Description)
		updates["description"] = coupon.Description
	}
	if input.Value != nil {
		coupon.Value = *input.Value
		updates["value"] = coupon.Value
	}
	switch {
	case input.ClearMinOrderValue:
		coupon.MinOrderValue = nil
		updates["min_order_value"] = nil
	case input.MinOrderValue != nil:
		coupon.MinOrderValue = input.MinOrderValue
		updates["min_order_value"] = *input.MinOrderValue
	}
	switch {
	case input.ClearMaxDiscount:
		coupon.MaxDiscount = nil
		updates["max_discount"] = nil
	case input.MaxDiscount != nil:
		coupon.MaxDiscount = input.MaxDiscount
		updates["max_discount"] = *input.MaxDiscount
	}
	switch {
	case input.ClearUsageLimit:
		coupon.UsageLimit = nil
		updates["usage_limit"] = nil
	case input.UsageLimit != nil:
		coupon.UsageLimit = input.UsageLimit
		updates["usage_limit"] = *input.UsageLimit
	}
	if input.ValidFrom != nil {
		coupon.ValidFrom = input.ValidFrom.UTC()
		updates["valid_from"] = coupon.ValidFrom
	}
	if input.ValidUntil != nil {
		coupon.ValidUntil = input.ValidUntil.UTC()
		updates["valid_until"] = coupon.ValidUntil
	}
	if input.IsActive != nil {
		coupon.IsActive = *input.IsActive
		updates["is_active"] = coupon.IsActive
	}
	if err := validateTerms(coupon); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return NewCouponDTO(coupon), nil
	}

	if err := s.repo.UpdateFields(ctx, id, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update coupon")
	}
	return s.Get(ctx, id)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CouponDTO, error) {
	coupon, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewCouponDTO(coupon), nil
}

func (s *service) List(ctx context.Context, params pagination.Params, activeOnly bool) (*types.Page[CouponDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.List(ctx, cursor, params.Limit, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	items := make([]CouponDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewCouponDTO(&rows[i]))
	}
	return &types.Page[CouponDTO]{Items: items, NextCursor: next}, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

func validateTerms(coupon *models.Coupon) error {
	switch coupon.Type {
	case enums.CouponTypePercentage:
		if coupon.Value.IsNegative() || coupon.Value.GreaterThan(decimal.NewFromInt(100)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage value must be between 0 and 100")
		}
	case enums.CouponTypeFixed:
		if coupon.Value.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "fixed value must not be negative")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid coupon type %q", coupon.Type))
	}
	if !coupon.ValidFrom.Before(coupon.ValidUntil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid_from must be before valid_until")
	}
	if coupon.UsageLimit != nil && *coupon.UsageLimit < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage_limit must not be negative")
	}
	if coupon.MinOrderValue != nil && *coupon.MinOrderValue < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_order_value must not be negative")
	}
	if coupon.MaxDiscount != nil && *coupon.MaxDiscount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max_discount must not be negative")
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
