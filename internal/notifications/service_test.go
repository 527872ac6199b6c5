package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

type fakeRepository struct {
	listFn        func(ctx context.Context, params listParams) ([]models.Notification, string, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	unread        int64
	created       []*models.Notification
	createErr     error
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listParams) ([]models.Notification, string, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, "", nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID, now)
	}
	return markResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID, now)
	}
	return 0, nil
}

func (f *fakeRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return f.unread, nil
}

func (f *fakeRepository) DeleteOlderThan(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T, repo Repository, now time.Time) *service {
	t.Helper()
	svc, err := NewService(repo)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return now }
	return impl
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestListBuildsInbox(t *testing.T) {
	userID := uuid.New()
	link := "/orders/abc"
	var got listParams
	repo := &fakeRepository{
		unread: 3,
		listFn: func(ctx context.Context, params listParams) ([]models.Notification, string, error) {
			got = params
			return []models.Notification{{ID: uuid.New(), UserID: userID, Title: "Order placed", Link: &link}}, "next", nil
		},
	}
	svc := newTestService(t, repo, time.Now())

	inbox, err := svc.List(context.Background(), userID, pagination.Params{Limit: 5}, true)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, 5, got.Limit)
	assert.True(t, got.UnreadOnly)
	assert.Nil(t, got.Cursor)
	require.Len(t, inbox.Items, 1)
	assert.Equal(t, "Order placed", inbox.Items[0].Title)
	assert.Equal(t, "next", inbox.NextCursor)
	assert.EqualValues(t, 3, inbox.UnreadCount)
}

func TestListRejectsBadCursor(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, time.Now())

	_, err := svc.List(context.Background(), uuid.New(), pagination.Params{Cursor: "not-a-cursor"}, false)
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestListRequiresUser(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, time.Now())

	_, err := svc.List(context.Background(), uuid.Nil, pagination.Params{}, false)
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestMarkReadUsesClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	var stamped time.Time
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (markResult, error) {
			stamped = at
			return markResult{Updated: true, Found: true}, nil
		},
	}
	svc := newTestService(t, repo, now)

	require.NoError(t, svc.MarkRead(context.Background(), uuid.New(), uuid.New()))
	assert.Equal(t, now, stamped)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (markResult, error) {
			return markResult{Found: true}, nil
		},
	}
	svc := newTestService(t, repo, time.Now())

	assert.NoError(t, svc.MarkRead(context.Background(), uuid.New(), uuid.New()))
}

func TestMarkReadErrors(t *testing.T) {
	cases := []struct {
		name    string
		userID  uuid.UUID
		id      uuid.UUID
		result  markResult
		repoErr error
		code    pkgerrors.Code
	}{
		{name: "missing user", userID: uuid.Nil, id: uuid.New(), code: pkgerrors.CodeUnauthorized},
		{name: "missing id", userID: uuid.New(), id: uuid.Nil, code: pkgerrors.CodeValidation},
		{name: "not found", userID: uuid.New(), id: uuid.New(), code: pkgerrors.CodeNotFound},
		{name: "repo failure", userID: uuid.New(), id: uuid.New(), repoErr: errors.New("db down"), code: pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepository{
				markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (markResult, error) {
					return tc.result, tc.repoErr
				},
			}
			svc := newTestService(t, repo, time.Now())
			assertCode(t, svc.MarkRead(context.Background(), tc.userID, tc.id), tc.code)
		})
	}
}

func TestMarkAllReadReturnsCount(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
			return 4, nil
		},
	}
	svc := newTestService(t, repo, time.Now())

	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}
