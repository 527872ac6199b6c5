package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/pagination"
	"github.com/agromart/agromart-backend/pkg/types"
)

const uniqueReviewConstraint = "reviews_product_user_key"

// Repository persists product reviews.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Omit("User").Create(review).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).Preload("User").First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *Repository) Exists(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Review{}, "id = ?", id).Error
}

// ListByProduct pages reviews newest first.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, string, error) {
	qb := r.db.WithContext(ctx).Preload("User").Where("product_id = ?", productID)
	var rows []models.Review
	err := qb.Scopes(pagination.Newest("", cursor, limit)).Find(&rows).Error
	if err != nil {
		return nil, "", err
	}
	rows, next := pagination.Trim(rows, limit, func(rv models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rv.CreatedAt, ID: rv.ID}
	})
	return rows, next, nil
}

// Histogram counts reviews per rating for a product.
func (r *Repository) Histogram(ctx context.Context, productID uuid.UUID) (types.RatingHistogram, error) {
	var rows []struct {
		Rating int
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("rating, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Group("rating").
		Scan(&rows).Error
	if err != nil {
		return types.RatingHistogram{}, err
	}
	var h types.RatingHistogram
	for _, row := range rows {
		h.Add(row.Rating, row.Count)
	}
	return h, nil
}

// LatestAt returns when the newest review for the product was written.
func (r *Repository) LatestAt(ctx context.Context, productID uuid.UUID) (*time.Time, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Select("created_at").
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(1).
		Find(&review).Error
	if err != nil || review.CreatedAt.IsZero() {
		return nil, err
	}
	return &review.CreatedAt, nil
}

// ProductVisible reports whether an active product with the id exists.
func (r *Repository) ProductVisible(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = ?", productID, true).
		Count(&count).Error
	return count > 0, err
}
