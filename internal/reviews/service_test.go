package reviews

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/agromart/agromart-backend/internal/products"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), logger.New(logger.Options{ServiceName: "reviews-test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, conn
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func comment(s string) *string { return &s }

func TestCreateReviewOncePerUser(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	p := dbtest.MustCreateProduct(t, conn, 450, 10)
	user := dbtest.MustCreateUser(t, conn)

	review, err := svc.Create(ctx, user.ID, p.ID, CreateReviewInput{Rating: 4, Comment: comment("  Good germination  ")})
	require.NoError(t, err)
	assert.Equal(t, 4, review.Rating)
	assert.Equal(t, "Good germination", *review.Comment)
	assert.Equal(t, user.Name, review.AuthorName)

	_, err = svc.Create(ctx, user.ID, p.ID, CreateReviewInput{Rating: 5})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateReviewValidation(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	p := dbtest.MustCreateProduct(t, conn, 450, 10)
	user := dbtest.MustCreateUser(t, conn)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Create(ctx, user.ID, p.ID, CreateReviewInput{Rating: rating})
		requireCode(t, err, pkgerrors.CodeValidation)
	}

	_, err := svc.Create(ctx, user.ID, uuid.New(), CreateReviewInput{Rating: 3})
	requireCode(t, err, pkgerrors.CodeNotFound)

	require.NoError(t, conn.Model(p).Update("is_active", false).Error)
	_, err = svc.Create(ctx, user.ID, p.ID, CreateReviewInput{Rating: 3})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestSummaryFeedsProductDetail(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	p := dbtest.MustCreateProduct(t, conn, 450, 10)

	empty, err := svc.Summary(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Nil(t, empty.LastReviewAt)

	for _, rating := range []int{5, 4, 4} {
		_, err := svc.Create(ctx, dbtest.MustCreateUser(t, conn).ID, p.ID, CreateReviewInput{Rating: rating})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Count)
	assert.Equal(t, 4.33, summary.Average)
	assert.Equal(t, int64(2), summary.Distribution[3])
	assert.NotNil(t, summary.LastReviewAt)

	products, err := product.NewService(product.NewRepository(conn), svc)
	require.NoError(t, err)
	detail, err := products.GetProduct(ctx, p.Slug)
	require.NoError(t, err)
	require.NotNil(t, detail.Rating)
	assert.Equal(t, 4.33, detail.Rating.Average)
	assert.Equal(t, int64(3), detail.Rating.Count)
}

func TestListByProductPages(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	p := dbtest.MustCreateProduct(t, conn, 450, 10)
	for range 3 {
		_, err := svc.Create(ctx, dbtest.MustCreateUser(t, conn).ID, p.ID, CreateReviewInput{Rating: 5})
		require.NoError(t, err)
	}

	page, err := svc.ListByProduct(ctx, p.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := svc.ListByProduct(ctx, p.ID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)
	seen := map[uuid.UUID]bool{page.Items[0].ID: true, page.Items[1].ID: true}
	assert.False(t, seen[rest.Items[0].ID])

	_, err = svc.ListByProduct(ctx, p.ID, pagination.Params{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestDeleteReview(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	p := dbtest.MustCreateProduct(t, conn, 450, 10)
	author := dbtest.MustCreateUser(t, conn)
	other := dbtest.MustCreateUser(t, conn)

	review, err := svc.Create(ctx, author.ID, p.ID, CreateReviewInput{Rating: 2})
	require.NoError(t, err)

	requireCode(t, svc.Delete(ctx, other.ID, false, review.ID), pkgerrors.CodeForbidden)
	require.NoError(t, svc.Delete(ctx, other.ID, true, review.ID))
	requireCode(t, svc.Delete(ctx, author.ID, false, review.ID), pkgerrors.CodeNotFound)

	_, err = svc.Create(ctx, author.ID, p.ID, CreateReviewInput{Rating: 3})
	assert.NoError(t, err, "a deleted review frees the slot")
}
