package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem freezes the product name, unit price and quantity at checkout.
type OrderItem struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index:order_items_order_id_idx"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName string    `gorm:"column:product_name;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	LineTotal   int64     `gorm:"column:line_total;not null"`
	Position    int       `gorm:"column:position;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
