package dbtest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

// MustCreateUser inserts an active customer.
func MustCreateUser(t testing.TB, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		Email:        "buyer_" + uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Name:         "Test Buyer",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// MustCreateCategory inserts a catalog category.
func MustCreateCategory(t testing.TB, db *gorm.DB) *models.Category {
	t.Helper()
	suffix := uuid.NewString()[:8]
	category := &models.Category{Name: "Seeds " + suffix, Slug: "seeds-" + suffix}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	return category
}

// MustCreateProduct inserts an active product with the given price and stock.
func MustCreateProduct(t testing.TB, db *gorm.DB, price int64, stock int) *models.Product {
	t.Helper()
	category := MustCreateCategory(t, db)
	suffix := uuid.NewString()[:8]
	product := &models.Product{
		CategoryID: category.ID,
		Name:       "Hybrid Tomato Seeds " + suffix,
		Slug:       "hybrid-tomato-seeds-" + suffix,
		Unit:       "packet",
		Price:      price,
		Stock:      stock,
		IsActive:   true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// CouponOption mutates a coupon before insert.
type CouponOption func(*models.Coupon)

// MustCreateCoupon inserts an active coupon valid for the surrounding day.
func MustCreateCoupon(t testing.TB, db *gorm.DB, couponType enums.CouponType, value int64, opts ...CouponOption) *models.Coupon {
	t.Helper()
	now := time.Now().UTC()
	coupon := &models.Coupon{
		Code:       strings.ToUpper("SAVE" + uuid.NewString()[:6]),
		Type:       couponType,
		Value:      decimal.NewFromInt(value),
		ValidFrom:  now.Add(-24 * time.Hour),
		ValidUntil: now.Add(24 * time.Hour),
		IsActive:   true,
	}
	for _, opt := range opts {
		opt(coupon)
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	return coupon
}

// ReloadProduct reads the product's current row.
func ReloadProduct(t testing.TB, db *gorm.DB, id uuid.UUID) *models.Product {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return &product
}
