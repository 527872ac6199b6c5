package wishlist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

func TestRepositoryAddItemIgnoresDuplicates(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.MustCreateUser(t, conn)
	p := dbtest.MustCreateProduct(t, conn, 120, 10)
	repo := NewRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.AddItem(ctx, user.ID, p.ID))
	require.NoError(t, repo.AddItem(ctx, user.ID, p.ID))

	var count int64
	require.NoError(t, conn.Model(&models.WishlistItem{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	require.NoError(t, repo.RemoveItem(ctx, user.ID, p.ID))
	require.NoError(t, repo.RemoveItem(ctx, user.ID, p.ID))
	require.NoError(t, conn.Model(&models.WishlistItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRepositoryListItemsPagesNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.MustCreateUser(t, conn)
	other := dbtest.MustCreateUser(t, conn)
	repo := NewRepository(conn)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	var saved []models.WishlistItem
	for i := range 3 {
		p := dbtest.MustCreateProduct(t, conn, int64(100+i), 5)
		item := models.WishlistItem{UserID: user.ID, ProductID: p.ID, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, conn.Create(&item).Error)
		saved = append(saved, item)
	}
	foreign := dbtest.MustCreateProduct(t, conn, 99, 1)
	require.NoError(t, repo.AddItem(ctx, other.ID, foreign.ID))

	first, next, err := repo.ListItems(ctx, user.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, saved[2].ID, first[0].ID)
	assert.Equal(t, saved[1].ID, first[1].ID)
	require.NotNil(t, first[0].Product)
	require.NotNil(t, first[0].Product.Category)
	require.NotEmpty(t, next)

	cursor, err := pagination.ParseCursor(next)
	require.NoError(t, err)
	second, next, err := repo.ListItems(ctx, user.ID, cursor, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, saved[0].ID, second[0].ID)
	assert.Empty(t, next)

	ids, err := repo.ProductIDs(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, saved[2].ProductID, ids[0])
	assert.Len(t, ids, 3)
	assert.NotContains(t, ids, foreign.ID)
}
