package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/logger"
)

type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// RetentionParams configure a retention job.
type RetentionParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Retention time.Duration
}

// NewNotificationCleanupJob deletes notifications older than the retention window.
func NewNotificationCleanupJob(params RetentionParams, repo notificationPurger) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return newRetentionJob("notification-cleanup", params, repo.DeleteOlderThan)
}

// NewOutboxRetentionJob deletes outbox rows published before the retention window.
func NewOutboxRetentionJob(params RetentionParams, repo outboxPurger) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return newRetentionJob("outbox-retention", params, repo.DeletePublishedBefore)
}

func newRetentionJob(name string, params RetentionParams, purge purgeFunc) (*retentionJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Retention <= 0 {
		return nil, fmt.Errorf("%s: retention must be positive", name)
	}
	return &retentionJob{
		name:      name,
		logg:      params.Logger,
		db:        params.DB,
		purge:     purge,
		retention: params.Retention,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	purge     purgeFunc
	retention time.Duration
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "retention cleanup complete")
	return nil
}
