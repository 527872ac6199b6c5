package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/outbox"
)

const defaultExpiryBatch = 100

type pendingOrderReader interface {
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderLifecycle interface {
	Transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, actor *outbox.ActorRef) error
}

// OrderExpiryJobParams configure the unpaid order sweeper.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    pendingOrderReader
	Lifecycle orderLifecycle
	Metrics   *metrics.Commerce
	TTL       time.Duration
	BatchSize int
}

// NewOrderExpiryJob cancels orders left pending longer than TTL. Cancelling
// returns their stock and emits order_canceled like a buyer cancel.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pending order reader required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("pending order ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &orderExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		orders:    params.Orders,
		lifecycle: params.Lifecycle,
		metrics:   params.Metrics,
		ttl:       params.TTL,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	orders    pendingOrderReader
	lifecycle orderLifecycle
	metrics   *metrics.Commerce
	ttl       time.Duration
	batch     int
	now       func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

// Run expires one batch per cycle. Each order commits on its own so one
// failure does not roll back the rest.
func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	pending, err := j.orders.ListPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending orders: %w", err)
	}

	var (
		errs    error
		expired int
		skipped int
	)
	for i := range pending {
		order := &pending[i]
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.lifecycle.Transition(ctx, tx, order, enums.OrderStatusCancelled, nil)
		})
		switch {
		case err == nil:
			expired++
			j.metrics.OrderTransition(string(enums.OrderStatusPending), string(enums.OrderStatusCancelled))
		case pkgerrors.Is(err, pkgerrors.CodeStateConflict):
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.OrderNumber, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(pending),
		"expired": expired,
		"skipped": skipped,
	}), "pending order expiry complete")
	return errs
}
