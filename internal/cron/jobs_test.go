package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/notifications"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/dbtest"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func TestNotificationCleanupDeletesOnlyExpiredRows(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.MustCreateUser(t, conn)
	for _, created := range []time.Time{fixedNow.AddDate(0, 0, -40), fixedNow.AddDate(0, 0, -2)} {
		n := models.Notification{UserID: user.ID, Type: enums.NotificationTypeOrder, Title: "Order placed", Message: "placed", CreatedAt: created}
		if err := conn.Create(&n).Error; err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}

	job, err := NewNotificationCleanupJob(RetentionParams{
		Logger:    testLogger(),
		DB:        db.NewFromConn(conn),
		Retention: 30 * 24 * time.Hour,
	}, notifications.NewRepository(conn))
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job.(*retentionJob).now = func() time.Time { return fixedNow }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var remaining int64
	conn.Model(&models.Notification{}).Count(&remaining)
	if remaining != 1 {
		t.Fatalf("expected 1 notification left, got %d", remaining)
	}
}

func TestOutboxRetentionKeepsUnpublishedRows(t *testing.T) {
	conn := dbtest.Open(t)
	old := fixedNow.AddDate(0, 0, -45)
	recent := fixedNow.AddDate(0, 0, -1)
	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`), PublishedAt: &recent},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: []byte(`{}`)},
	}
	for i := range rows {
		if err := conn.Create(&rows[i]).Error; err != nil {
			t.Fatalf("create outbox row: %v", err)
		}
	}

	job, err := NewOutboxRetentionJob(RetentionParams{
		Logger:    testLogger(),
		DB:        db.NewFromConn(conn),
		Retention: 30 * 24 * time.Hour,
	}, outbox.NewRepository(conn))
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job.(*retentionJob).now = func() time.Time { return fixedNow }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var ids []uuid.UUID
	conn.Model(&models.OutboxEvent{}).Order("created_at").Pluck("id", &ids)
	if len(ids) != 2 {
		t.Fatalf("expected 2 rows left, got %d", len(ids))
	}
	for _, id := range ids {
		if id == rows[0].ID {
			t.Fatal("expired published row was kept")
		}
	}
}

func TestRetentionJobRequiresWindow(t *testing.T) {
	_, err := NewOutboxRetentionJob(RetentionParams{Logger: testLogger(), DB: db.NewFromConn(nil)}, outbox.NewRepository(nil))
	if err == nil {
		t.Fatal("expected error for zero retention")
	}
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakePendingOrders struct {
	cutoff time.Time
	limit  int
	rows   []models.Order
}

func (f *fakePendingOrders) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.rows, nil
}

type fakeLifecycle struct {
	errs      map[uuid.UUID]error
	cancelled []uuid.UUID
}

func (f *fakeLifecycle) Transition(_ context.Context, _ *gorm.DB, order *models.Order, to enums.OrderStatus, actor *outbox.ActorRef) error {
	if err := f.errs[order.ID]; err != nil {
		return err
	}
	if to != enums.OrderStatusCancelled || actor != nil {
		return errors.New("unexpected transition")
	}
	f.cancelled = append(f.cancelled, order.ID)
	return nil
}

func TestOrderExpiryCancelsStaleOrders(t *testing.T) {
	raced, broken, stale := uuid.New(), uuid.New(), uuid.New()
	reader := &fakePendingOrders{rows: []models.Order{
		{ID: raced, OrderNumber: "AGM-1", Status: enums.OrderStatusPending},
		{ID: broken, OrderNumber: "AGM-2", Status: enums.OrderStatusPending},
		{ID: stale, OrderNumber: "AGM-3", Status: enums.OrderStatusPending},
	}}
	lifecycle := &fakeLifecycle{errs: map[uuid.UUID]error{
		raced:  pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently"),
		broken: errors.New("db down"),
	}}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger:    testLogger(),
		DB:        passthroughTx{},
		Orders:    reader,
		Lifecycle: lifecycle,
		TTL:       48 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewOrderExpiryJob: %v", err)
	}
	job.(*orderExpiryJob).now = func() time.Time { return fixedNow }

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected the failing order to surface an error")
	}
	if !reader.cutoff.Equal(fixedNow.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", reader.cutoff)
	}
	if reader.limit != defaultExpiryBatch {
		t.Fatalf("expected default batch, got %d", reader.limit)
	}
	if len(lifecycle.cancelled) != 1 || lifecycle.cancelled[0] != stale {
		t.Fatalf("expected only the stale order cancelled, got %v", lifecycle.cancelled)
	}
}
