package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/db/models"
)

// CategoryDTO is the public category payload.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
}

// RatingSummary aggregates a product's reviews.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// ProductDTO represents the product payload returned to clients.
type ProductDTO struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Slug          string         `json:"slug"`
	Description   *string        `json:"description,omitempty"`
	Unit          string         `json:"unit"`
	Price         int64          `json:"price"`
	OriginalPrice *int64         `json:"original_price,omitempty"`
	Stock         int            `json:"stock"`
	InStock       bool           `json:"in_stock"`
	ImageURL      *string        `json:"image_url,omitempty"`
	IsActive      bool           `json:"is_active"`
	Category      *CategoryDTO   `json:"category,omitempty"`
	Rating        *RatingSummary `json:"rating,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func NewCategoryDTO(c *models.Category) *CategoryDTO {
	if c == nil {
		return nil
	}
	return &CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
	}
}

// NewProductDTO maps a product row; rating is only set on detail views.
func NewProductDTO(p *models.Product, rating *RatingSummary) *ProductDTO {
	return &ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		Unit:          p.Unit,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Stock:         p.Stock,
		InStock:       p.Stock > 0,
		ImageURL:      p.ImageURL,
		IsActive:      p.IsActive,
		Category:      NewCategoryDTO(p.Category),
		Rating:        rating,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
