package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/config"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

const (
	// FreeShippingThreshold is the subtotal at which shipping becomes free.
	FreeShippingThreshold int64 = 5000
	// FlatShippingFee is charged below the free shipping threshold.
	FlatShippingFee int64 = 200
	taxPlaces             = 2
)

// DefaultTaxRate is the GST rate applied to the discounted subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.18")

// Calculator computes shipping, tax and order totals. Amounts are whole
// currency units except tax and total, which carry two decimal places.
// Rounding is half away from zero everywhere.
type Calculator struct {
	freeShippingThreshold int64
	flatShippingFee       int64
	taxRate               decimal.Decimal
}

// Breakdown is the full price decomposition of an order or invoice.
type Breakdown struct {
	Subtotal int64           `json:"subtotal"`
	Discount int64           `json:"discount"`
	Shipping int64           `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Default returns a calculator using the storefront's standard constants.
func Default() Calculator {
	return Calculator{
		freeShippingThreshold: FreeShippingThreshold,
		flatShippingFee:       FlatShippingFee,
		taxRate:               DefaultTaxRate,
	}
}

// NewCalculator builds a calculator from configuration.
func NewCalculator(cfg config.PricingConfig) (Calculator, error) {
	if cfg.FreeShippingThreshold < 0 || cfg.FlatShippingFee < 0 {
		return Calculator{}, fmt.Errorf("shipping settings must be non-negative")
	}
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return Calculator{}, fmt.Errorf("tax rate must be within [0, 1)")
	}
	return Calculator{
		freeShippingThreshold: cfg.FreeShippingThreshold,
		flatShippingFee:       cfg.FlatShippingFee,
		taxRate:               decimal.NewFromFloat(cfg.TaxRate),
	}, nil
}

// ShippingFee is computed on the pre-discount subtotal.
func (c Calculator) ShippingFee(subtotal int64) int64 {
	if subtotal >= c.freeShippingThreshold {
		return 0
	}
	return c.flatShippingFee
}

// Tax applies the tax rate to subtotal-discount. A negative base is rejected.
func (c Calculator) Tax(subtotal, discount int64) (decimal.Decimal, error) {
	base := subtotal - discount
	if base < 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal").
			WithDetails(map[string]any{"subtotal": subtotal, "discount": discount})
	}
	return decimal.NewFromInt(base).Mul(c.taxRate).Round(taxPlaces), nil
}

// Breakdown returns subtotal - discount + shipping + tax along with its parts.
func (c Calculator) Breakdown(subtotal, discount int64) (Breakdown, error) {
	tax, err := c.Tax(subtotal, discount)
	if err != nil {
		return Breakdown{}, err
	}
	shipping := c.ShippingFee(subtotal)
	total := decimal.NewFromInt(subtotal - discount + shipping).Add(tax)
	return Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    total,
	}, nil
}

// NetTotal is the cart-level total: subtotal minus discount, floored at zero.
func NetTotal(subtotal, discount int64) int64 {
	if discount >= subtotal {
		return 0
	}
	return subtotal - discount
}
