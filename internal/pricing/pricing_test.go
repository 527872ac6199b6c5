package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/config"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

func TestShippingFeeThreshold(t *testing.T) {
	calc := Default()
	assert.Equal(t, int64(200), calc.ShippingFee(4999))
	assert.Equal(t, int64(0), calc.ShippingFee(5000))
	assert.Equal(t, int64(200), calc.ShippingFee(0))
}

func TestTax(t *testing.T) {
	calc := Default()

	tax, err := calc.Tax(1000, 0)
	require.NoError(t, err)
	assert.True(t, tax.Equal(decimal.RequireFromString("180.00")), tax.String())

	tax, err = calc.Tax(1000, 200)
	require.NoError(t, err)
	assert.True(t, tax.Equal(decimal.RequireFromString("144.00")), tax.String())
}

func TestTaxRoundsHalfAwayFromZero(t *testing.T) {
	calc := Default()
	custom, err := NewCalculator(config.PricingConfig{FreeShippingThreshold: 5000, FlatShippingFee: 200, TaxRate: 0.125})
	require.NoError(t, err)

	tax, err := custom.Tax(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "0.13", tax.StringFixed(2))

	tax, err = calc.Tax(3, 0)
	require.NoError(t, err)
	assert.Equal(t, "0.54", tax.StringFixed(2))
}

func TestTaxRejectsNegativeBase(t *testing.T) {
	_, err := Default().Tax(100, 101)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestBreakdownCheckoutScenario(t *testing.T) {
	b, err := Default().Breakdown(200, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(200), b.Shipping)
	assert.True(t, b.Tax.Equal(decimal.NewFromInt(36)))
	assert.True(t, b.Total.Equal(decimal.NewFromInt(436)), b.Total.String())
}

func TestBreakdownShippingUsesPreDiscountSubtotal(t *testing.T) {
	b, err := Default().Breakdown(5000, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Shipping)
	assert.True(t, b.Tax.Equal(decimal.NewFromInt(810)))
	assert.True(t, b.Total.Equal(decimal.NewFromInt(5310)))
}

func TestNetTotalNeverNegative(t *testing.T) {
	assert.Equal(t, int64(0), NetTotal(300, 500))
	assert.Equal(t, int64(0), NetTotal(300, 300))
	assert.Equal(t, int64(200), NetTotal(300, 100))
}

func TestNewCalculatorValidation(t *testing.T) {
	_, err := NewCalculator(config.PricingConfig{TaxRate: 1.2})
	assert.Error(t, err)
	_, err = NewCalculator(config.PricingConfig{FlatShippingFee: -1, TaxRate: 0.18})
	assert.Error(t, err)
}
