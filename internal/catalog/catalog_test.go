package catalog

import (
	"context"
	"io"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
)

func repoSeedFile(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "seed", "catalog.yaml")
}

func TestLoadBundledSeedFile(t *testing.T) {
	f, err := LoadFile(repoSeedFile(t))
	require.NoError(t, err)

	require.NotNil(t, f.Admin)
	assert.Len(t, f.Categories, 4)
	assert.Equal(t, "seeds", f.Categories[0].Slug)
	assert.Equal(t, "hybrid-tomato-seeds-10g", f.Products[0].Slug)
	require.Len(t, f.Coupons, 2)
	assert.Equal(t, "KISAN10", f.Coupons[0].Code)
	assert.Equal(t, enums.CouponTypePercentage, f.Coupons[0].Type)
	assert.Equal(t, "10", f.Coupons[0].Value.String())
	assert.Equal(t, defaultCouponDays, f.Coupons[1].ValidDays)
}

func TestParseRejectsBrokenFiles(t *testing.T) {
	cases := map[string]string{
		"unknown category": `
categories: [{name: Seeds}]
products: [{name: Okra, category: tools, price: 10}]`,
		"duplicate slug": `
categories: [{name: Seeds}, {name: seeds}]`,
		"bad coupon type": `
coupons: [{code: x, type: bogo, value: 5}]`,
		"percentage over 100": `
coupons: [{code: x, type: percentage, value: 150}]`,
		"negative stock": `
categories: [{name: Seeds}]
products: [{name: Okra, category: seeds, price: 10, stock: -1}]`,
		"not yaml": `categories: [`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestSeederIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	seeder, err := NewSeeder(db.NewFromConn(conn), logger.New(logger.Options{ServiceName: "seed-test", Output: io.Discard}))
	require.NoError(t, err)

	f, err := LoadFile(repoSeedFile(t))
	require.NoError(t, err)

	first, err := seeder.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 4, first.CategoriesCreated)
	assert.Equal(t, 8, first.ProductsCreated)
	assert.Equal(t, 2, first.CouponsCreated)

	require.NoError(t, conn.Model(&models.Product{}).Where("slug = ?", "vermicompost-25kg").Update("stock", 7).Error)
	require.NoError(t, conn.Model(&models.Coupon{}).Where("code = ?", "FLAT150").Update("used_count", 3).Error)

	f.Products[2].Price = 475
	second, err := seeder.Apply(ctx, f)
	require.NoError(t, err)
	assert.Zero(t, second.ProductsCreated)
	assert.Equal(t, 8, second.ProductsUpdated)
	assert.Equal(t, 2, second.CouponsUpdated)

	var vermi models.Product
	require.NoError(t, conn.First(&vermi, "slug = ?", "vermicompost-25kg").Error)
	assert.Equal(t, int64(475), vermi.Price)
	assert.Equal(t, 7, vermi.Stock)
	assert.True(t, vermi.IsActive)

	var coupon models.Coupon
	require.NoError(t, conn.First(&coupon, "code = ?", "FLAT150").Error)
	assert.Equal(t, 3, coupon.UsedCount)

	var count int64
	require.NoError(t, conn.Model(&models.Product{}).Count(&count).Error)
	assert.Equal(t, int64(8), count)
}
