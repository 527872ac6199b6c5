package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result counts what a seed run changed.
type Result struct {
	CategoriesCreated int
	CategoriesUpdated int
	ProductsCreated   int
	ProductsUpdated   int
	CouponsCreated    int
	CouponsUpdated    int
}

// Seeder upserts seed data keyed by slug and coupon code, so it is safe to
// re-run. Stock is only set on insert; coupon usage counters are never reset.
type Seeder struct {
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

func NewSeeder(tx txRunner, logg *logger.Logger) (*Seeder, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Seeder{tx: tx, logg: logg, now: time.Now}, nil
}

// Apply writes the seed file in one transaction.
func (s *Seeder) Apply(ctx context.Context, f *File) (Result, error) {
	var res Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)
		categoryIDs, err := s.applyCategories(tx, f.Categories, &res)
		if err != nil {
			return err
		}
		if err := s.applyProducts(tx, f.Products, categoryIDs, &res); err != nil {
			return err
		}
		return s.applyCoupons(tx, f.Coupons, &res)
	})
	if err != nil {
		return Result{}, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"categories_created": res.CategoriesCreated,
		"categories_updated": res.CategoriesUpdated,
		"products_created":   res.ProductsCreated,
		"products_updated":   res.ProductsUpdated,
		"coupons_created":    res.CouponsCreated,
		"coupons_updated":    res.CouponsUpdated,
	}), "catalog seed applied")
	return res, nil
}

func (s *Seeder) applyCategories(tx *gorm.DB, seeds []CategorySeed, res *Result) (map[string]models.Category, error) {
	out := make(map[string]models.Category, len(seeds))
	for _, seed := range seeds {
		var row models.Category
		err := tx.Where("slug = ?", seed.Slug).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.Category{Name: seed.Name, Slug: seed.Slug, Description: optional(seed.Description)}
			if err := tx.Create(&row).Error; err != nil {
				return nil, fmt.Errorf("create category %s: %w", seed.Slug, err)
			}
			res.CategoriesCreated++
		case err != nil:
			return nil, fmt.Errorf("load category %s: %w", seed.Slug, err)
		default:
			row.Name = seed.Name
			row.Description = optional(seed.Description)
			if err := tx.Save(&row).Error; err != nil {
				return nil, fmt.Errorf("update category %s: %w", seed.Slug, err)
			}
			res.CategoriesUpdated++
		}
		out[seed.Slug] = row
	}
	return out, nil
}

func (s *Seeder) applyProducts(tx *gorm.DB, seeds []ProductSeed, categories map[string]models.Category, res *Result) error {
	for _, seed := range seeds {
		category, ok := categories[seed.Category]
		if !ok {
			return fmt.Errorf("product %s references unknown category %s", seed.Slug, seed.Category)
		}
		var row models.Product
		err := tx.Where("slug = ?", seed.Slug).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.Product{Slug: seed.Slug, Stock: seed.Stock, IsActive: true}
			seed.applyTo(&row, category)
			if err := tx.Omit("Category").Create(&row).Error; err != nil {
				return fmt.Errorf("create product %s: %w", seed.Slug, err)
			}
			res.ProductsCreated++
		case err != nil:
			return fmt.Errorf("load product %s: %w", seed.Slug, err)
		default:
			seed.applyTo(&row, category)
			if err := tx.Omit("Category").Save(&row).Error; err != nil {
				return fmt.Errorf("update product %s: %w", seed.Slug, err)
			}
			res.ProductsUpdated++
		}
	}
	return nil
}

func (p ProductSeed) applyTo(row *models.Product, category models.Category) {
	row.CategoryID = category.ID
	row.Name = p.Name
	row.Description = optional(p.Description)
	row.Unit = p.Unit
	row.Price = p.Price
	row.OriginalPrice = p.OriginalPrice
	row.ImageURL = optional(p.ImageURL)
}

func (s *Seeder) applyCoupons(tx *gorm.DB, seeds []CouponSeed, res *Result) error {
	now := s.now().UTC()
	for _, seed := range seeds {
		var row models.Coupon
		err := tx.Where("code = ?", seed.Code).First(&row).Error
		created := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !created {
			return fmt.Errorf("load coupon %s: %w", seed.Code, err)
		}

		row.Code = seed.Code
		row.Description = optional(seed.Description)
		row.Type = seed.Type
		row.Value = seed.Value
		row.MinOrderValue = seed.MinOrderValue
		row.MaxDiscount = seed.MaxDiscount
		row.UsageLimit = seed.UsageLimit
		row.ValidFrom = now
		row.ValidUntil = now.AddDate(0, 0, seed.ValidDays)
		row.IsActive = true

		if created {
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("create coupon %s: %w", seed.Code, err)
			}
			res.CouponsCreated++
			continue
		}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("update coupon %s: %w", seed.Code, err)
		}
		res.CouponsUpdated++
	}
	return nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
