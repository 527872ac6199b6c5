package wishlist

import (
	"time"

	"github.com/google/uuid"

	product "github.com/agromart/agromart-backend/internal/products"
	"github.com/agromart/agromart-backend/pkg/db/models"
)

// WishlistItemDTO wraps the product included in a wishlist row.
type WishlistItemDTO struct {
	Product *product.ProductDTO `json:"product"`
	AddedAt time.Time           `json:"added_at"`
}

// WishlistIDsDTO is a lightweight projection the storefront uses to mark saved products.
type WishlistIDsDTO struct {
	ProductIDs []uuid.UUID `json:"product_ids"`
}

func newWishlistItemDTO(item *models.WishlistItem) WishlistItemDTO {
	dto := WishlistItemDTO{AddedAt: item.CreatedAt}
	if item.Product != nil {
		dto.Product = product.NewProductDTO(item.Product, nil)
	}
	return dto
}
