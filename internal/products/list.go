package product

import (
	"github.com/agromart/agromart-backend/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the browse endpoint.
type ProductListFilters struct {
	CategorySlug string `json:"category,omitempty"`
	Query        string `json:"q,omitempty"`
	PriceMin     *int64 `json:"price_min,omitempty"`
	PriceMax     *int64 `json:"price_max,omitempty"`
	InStock      *bool  `json:"in_stock,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter the catalog.
type ListProductsInput struct {
	Filters         ProductListFilters
	Pagination      pagination.Params
	IncludeInactive bool
}
