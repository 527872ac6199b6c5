package cart

import (
	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/internal/pricing"
	"github.com/agromart/agromart-backend/pkg/db/models"
)

// CartItemDTO is a cart line priced at the product's current price.
type CartItemDTO struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Unit      string    `json:"unit"`
	ImageURL  *string   `json:"image_url,omitempty"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	LineTotal int64     `json:"line_total"`
	Stock     int       `json:"stock"`
	Available bool      `json:"available"`
}

// CartDTO is the cart view returned to shoppers.
type CartDTO struct {
	ID        uuid.UUID              `json:"id"`
	Items     []CartItemDTO          `json:"items"`
	ItemCount int                    `json:"item_count"`
	Subtotal  int64                  `json:"subtotal"`
	Discount  int64                  `json:"discount"`
	Total     int64                  `json:"total"`
	Coupon    *coupons.ValidationDTO `json:"coupon,omitempty"`
}

// Totals is the cart-level arithmetic: live subtotal and the discounted total floored at zero.
type Totals struct {
	Subtotal int64
	Discount int64
	Total    int64
}

// ComputeTotals sums price × quantity over lines whose product is loaded.
func ComputeTotals(items []models.CartItem, discount int64) Totals {
	var subtotal int64
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		subtotal += item.Product.Price * int64(item.Quantity)
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    pricing.NetTotal(subtotal, discount),
	}
}

func newCartDTO(cart *models.Cart, totals Totals) *CartDTO {
	dto := &CartDTO{
		ID:       cart.ID,
		Items:    make([]CartItemDTO, 0, len(cart.Items)),
		Subtotal: totals.Subtotal,
		Discount: totals.Discount,
		Total:    totals.Total,
	}
	for _, item := range cart.Items {
		line := CartItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if p := item.Product; p != nil {
			line.Name = p.Name
			line.Slug = p.Slug
			line.Unit = p.Unit
			line.ImageURL = p.ImageURL
			line.UnitPrice = p.Price
			line.LineTotal = p.Price * int64(item.Quantity)
			line.Stock = p.Stock
			line.Available = p.IsActive && p.Stock >= item.Quantity
		}
		dto.ItemCount += item.Quantity
		dto.Items = append(dto.Items, line)
	}
	return dto
}
