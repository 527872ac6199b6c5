package main

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox/registry"
)

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

func (r *Relay) dispatch(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent) (outcome, error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	resolved, err := r.resolver.Resolve(*event)
	if err != nil {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"topic":    resolved.Descriptor.Topic,
		"event_id": resolved.Envelope.EventID,
	})

	pubErr := r.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := r.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.logg.Debug(ctx, "outbox event published")
		return outcomePublished, nil
	}

	if registry.IsNonRetryable(pubErr) {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr)
	}

	attempt := event.AttemptCount + 1
	if attempt >= r.settings.maxAttempts {
		giveUp := fmt.Errorf("gave up after %d attempts: %w", attempt, pubErr)
		return outcomeDeadLettered, r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, giveUp)
	}

	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"attempt_count": attempt,
		"error":         pubErr.Error(),
	}), "outbox publish failed, will retry")
	if err := r.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

// deadLetter copies the row into outbox_dlq and retires it from the queue.
func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event *models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event dead-lettered")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      r.now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, cause, r.settings.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
