package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/metrics"
)

// LocalItem is a line from a client-side cart kept while the shopper was signed out.
type LocalItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// Sync merges a device-local cart into the server cart and returns the merged view.
//
// Lines for unknown, inactive or sold-out products and non-positive quantities are
// skipped. A line already in the server cart keeps the larger of the two quantities,
// so a decrease made on another device is never applied. Every resulting quantity is
// bounded by current stock and the per-item cap. Failures on individual lines are
// logged and do not abort the merge.
func (s *service) Sync(ctx context.Context, userID uuid.UUID, items []LocalItem) (*CartDTO, error) {
	cart, err := s.getOrCreate(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	var errs error
	for _, local := range items {
		outcome, err := s.syncItem(ctx, cart.ID, local)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", local.ProductID, err))
		}
		s.metrics.CartSyncItem(outcome)
	}

	if errs != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":      userID.String(),
			"failed_items": len(multierr.Errors(errs)),
			"error":        errs.Error(),
		})
		s.logg.Warn(logCtx, "cart sync skipped items after errors")
	}

	return s.View(ctx, userID, "")
}

func (s *service) syncItem(ctx context.Context, cartID uuid.UUID, local LocalItem) (string, error) {
	if local.Quantity <= 0 {
		return metrics.SyncOutcomeSkippedInvalid, nil
	}

	product, err := s.products.FindByID(ctx, local.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return metrics.SyncOutcomeSkippedMissing, nil
		}
		return metrics.SyncOutcomeFailed, err
	}
	if !product.IsActive {
		return metrics.SyncOutcomeSkippedMissing, nil
	}
	if product.Stock <= 0 {
		return metrics.SyncOutcomeSkippedStock, nil
	}

	existing, err := s.repo.FindItem(ctx, cartID, product.ID)
	switch {
	case err == nil:
		target := MergedQuantity(existing.Quantity, local.Quantity, product.Stock, s.syncCap)
		if target == existing.Quantity {
			return metrics.SyncOutcomeMerged, nil
		}
		existing.Quantity = target
		if err := s.repo.SaveItem(ctx, existing); err != nil {
			return metrics.SyncOutcomeFailed, err
		}
		return metrics.SyncOutcomeMerged, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		item := &models.CartItem{
			CartID:    cartID,
			ProductID: product.ID,
			Quantity:  AddedQuantity(local.Quantity, product.Stock, s.syncCap),
		}
		if err := s.repo.SaveItem(ctx, item); err != nil {
			return metrics.SyncOutcomeFailed, err
		}
		return metrics.SyncOutcomeAdded, nil
	default:
		return metrics.SyncOutcomeFailed, err
	}
}

// MergedQuantity resolves a line present on both sides: min(max(server, local), stock, cap).
func MergedQuantity(server, local, stock, limit int) int {
	return min(max(server, local), stock, limit)
}

// AddedQuantity bounds a line only present locally: min(local, stock, cap).
func AddedQuantity(local, stock, limit int) int {
	return min(local, stock, limit)
}
