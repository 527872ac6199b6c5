package wishlist

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

type fakeWishlistRepo struct {
	added   []uuid.UUID
	removed []uuid.UUID
	rows    []models.WishlistItem
	ids     []uuid.UUID
	err     error
}

func (f *fakeWishlistRepo) AddItem(_ context.Context, _ uuid.UUID, productID uuid.UUID) error {
	f.added = append(f.added, productID)
	return f.err
}

func (f *fakeWishlistRepo) RemoveItem(_ context.Context, _ uuid.UUID, productID uuid.UUID) error {
	f.removed = append(f.removed, productID)
	return f.err
}

func (f *fakeWishlistRepo) ListItems(context.Context, uuid.UUID, *pagination.Cursor, int) ([]models.WishlistItem, string, error) {
	return f.rows, "", f.err
}

func (f *fakeWishlistRepo) ProductIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakeProducts map[uuid.UUID]*models.Product

func (f fakeProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestAddItemChecksProduct(t *testing.T) {
	active := &models.Product{ID: uuid.New(), Name: "Neem Oil", IsActive: true}
	hidden := &models.Product{ID: uuid.New(), Name: "Old Urea", IsActive: false}
	repo := &fakeWishlistRepo{}
	svc, err := NewService(repo, fakeProducts{active.ID: active, hidden.ID: hidden})
	require.NoError(t, err)
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, svc.AddItem(ctx, user, active.ID))
	assert.Equal(t, []uuid.UUID{active.ID}, repo.added)

	assertCode(t, svc.AddItem(ctx, user, hidden.ID), pkgerrors.CodeNotFound)
	assertCode(t, svc.AddItem(ctx, user, uuid.New()), pkgerrors.CodeNotFound)
	assertCode(t, svc.AddItem(ctx, user, uuid.Nil), pkgerrors.CodeValidation)
	assertCode(t, svc.AddItem(ctx, uuid.Nil, active.ID), pkgerrors.CodeUnauthorized)
	assert.Len(t, repo.added, 1)
}

func TestRemoveItemWrapsStoreErrors(t *testing.T) {
	repo := &fakeWishlistRepo{err: errors.New("db down")}
	svc, err := NewService(repo, fakeProducts{})
	require.NoError(t, err)

	assertCode(t, svc.RemoveItem(context.Background(), uuid.New(), uuid.New()), pkgerrors.CodeDependency)
}

func TestGetWishlistMapsProducts(t *testing.T) {
	p := &models.Product{ID: uuid.New(), Name: "Drip Kit", Price: 1499, Stock: 0, IsActive: true}
	repo := &fakeWishlistRepo{rows: []models.WishlistItem{{ID: uuid.New(), ProductID: p.ID, Product: p}}}
	svc, err := NewService(repo, fakeProducts{})
	require.NoError(t, err)

	page, err := svc.GetWishlist(context.Background(), uuid.New(), pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Drip Kit", page.Items[0].Product.Name)
	assert.False(t, page.Items[0].Product.InStock)

	_, err = svc.GetWishlist(context.Background(), uuid.New(), pagination.Params{Cursor: "%%%"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestGetWishlistIDsNeverNull(t *testing.T) {
	svc, err := NewService(&fakeWishlistRepo{}, fakeProducts{})
	require.NoError(t, err)

	ids, err := svc.GetWishlistIDs(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, ids.ProductIDs)
	assert.Empty(t, ids.ProductIDs)
}
