package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a sellable catalog listing. Price is held in whole currency units.
type Product struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID    uuid.UUID `gorm:"column:category_id;type:uuid;not null;index:products_category_id_idx"`
	Name          string    `gorm:"column:name;not null"`
	Slug          string    `gorm:"column:slug;not null;uniqueIndex:products_slug_key"`
	Description   *string   `gorm:"column:description"`
	Unit          string    `gorm:"column:unit;not null;default:'unit'"`
	Price         int64     `gorm:"column:price;not null;check:products_price_check,price >= 0"`
	OriginalPrice *int64    `gorm:"column:original_price"`
	Stock         int       `gorm:"column:stock;not null;check:products_stock_check,stock >= 0"`
	ImageURL      *string   `gorm:"column:image_url"`
	IsActive      bool      `gorm:"column:is_active;not null"`
	Category      *Category `gorm:"foreignKey:CategoryID"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
