package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/config"
	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	publishJob         = "outbox_publish"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	ClaimBatchTx(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// RelayParams wires the outbox relay. OpenTopic defaults to Pub/Sub
// publishers with per-order message ordering.
type RelayParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	DLQ        dlqRepository
	Registry   registryResolver
	OpenTopic  func(topic string) publisher
	Metrics    *metrics.JobMetrics
}

type relaySettings struct {
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func settingsFrom(cfg config.OutboxConfig) relaySettings {
	s := relaySettings{
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.poll <= 0 {
		s.poll = defaultPoll
	}
	return s
}

// Relay moves committed outbox rows onto their Pub/Sub topics. Rows are
// locked per batch so several relays can run side by side.
type Relay struct {
	logg     *logger.Logger
	db       dbClient
	pubsub   pubSubClient
	repo     outboxRepository
	dlq      dlqRepository
	resolver registryResolver
	topics   *topicPublishers
	metrics  *metrics.JobMetrics
	settings relaySettings
	now      func() time.Time
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	open := params.OpenTopic
	if open == nil {
		open = orderedTopicOpener(params.PubSub)
	}

	return &Relay{
		logg:     params.Logger,
		db:       params.DB,
		pubsub:   params.PubSub,
		repo:     params.Repository,
		dlq:      params.DLQ,
		resolver: params.Registry,
		topics:   newTopicPublishers(open),
		metrics:  params.Metrics,
		settings: settingsFrom(params.Outbox),
		now:      time.Now,
	}, nil
}

// Run polls until ctx ends. A full batch loops straight into the next one;
// an empty poll waits the configured interval and a failed one backs off.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": r.db.Ping,
		"pubsub":   r.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	defer r.topics.stop()

	pace := newPacer(r.settings.poll, maxBackoff)
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		started := time.Now()
		summary, err := r.drainOnce(ctx)
		if summary.fetched > 0 || err != nil {
			r.metrics.Observe(publishJob, time.Since(started), err)
		}

		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = pace.failure()
		case summary.fetched > 0:
			pace.reset()
			continue
		default:
			pace.reset()
			wait = pace.idle()
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

type batchSummary struct {
	fetched      int
	published    int
	retried      int
	deadLettered int
}

func (b *batchSummary) record(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetry:
		b.retried++
	case outcomeDeadLettered:
		b.deadLettered++
	}
}

// drainOnce relays one locked batch inside a single transaction. Publish
// failures are recorded on the row; only bookkeeping errors abort the batch.
func (r *Relay) drainOnce(ctx context.Context) (batchSummary, error) {
	var summary batchSummary
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		summary = batchSummary{}
		events, err := r.repo.ClaimBatchTx(tx, r.settings.batchSize, r.settings.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		summary.fetched = len(events)
		for i := range events {
			result, err := r.dispatch(ctx, tx, &events[i])
			if err != nil {
				return err
			}
			summary.record(result)
		}
		return nil
	})
	if err == nil && summary.fetched > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"fetched":       summary.fetched,
			"published":     summary.published,
			"retried":       summary.retried,
			"dead_lettered": summary.deadLettered,
		}), "outbox batch relayed")
	}
	return summary, err
}
