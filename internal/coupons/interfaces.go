package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

// CouponRepository defines the persistence surface required by the coupon service.
type CouponRepository interface {
	WithTx(tx *gorm.DB) CouponRepository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, cursor *pagination.Cursor, limit int, activeOnly bool) ([]models.Coupon, string, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error)
}
