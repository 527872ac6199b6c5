package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

var errTxRequired = errors.New("outbox write requires a transaction")

// Repository persists outbox rows. Writes that must commit with domain state
// take the caller's transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// ListForAggregate returns every event recorded for one aggregate, oldest first.
func (r *Repository) ListForAggregate(ctx context.Context, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("aggregate_type = ? AND aggregate_id = ?", aggregateType, aggregateID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// CountPending counts rows the relay will still try, that is unpublished rows
// below maxAttempts.
func (r *Repository) CountPending(ctx context.Context, maxAttempts int) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Count(&n).Error
	return n, err
}

// ClaimBatchTx selects up to limit relayable rows, oldest first. On Postgres
// the rows are locked FOR UPDATE SKIP LOCKED so parallel relays split the queue.
func (r *Repository) ClaimBatchTx(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	query := tx.Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC, id ASC").
		Limit(limit)
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	return rows, query.Find(&rows).Error
}

// MarkPublishedTx stamps published_at and clears the last error.
func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return settle(tx, id, map[string]any{
		"published_at": time.Now().UTC(),
		"last_error":   nil,
	})
}

// MarkFailedTx records a failed attempt; the row stays claimable.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	return settle(tx, id, map[string]any{
		"last_error":    cause.Error(),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminalTx parks a row at terminalAttempts so ClaimBatchTx never returns it again.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, cause error, terminalAttempts int) error {
	return settle(tx, id, map[string]any{
		"last_error":    cause.Error(),
		"attempt_count": terminalAttempts,
	})
}

func settle(tx *gorm.DB, id uuid.UUID, updates map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(updates).Error
}

// DeletePublishedBefore removes relayed rows published before cutoff.
// Unpublished and parked rows are kept for inspection.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return result.RowsAffected, result.Error
}
