package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

// Inventory moves stock in and out of products inside a caller-owned transaction.
type Inventory struct {
	repo *Repository
}

func NewInventory(repo *Repository) *Inventory {
	return &Inventory{repo: repo}
}

// Reserve decrements stock only when enough is on hand. The decrement is a single
// conditional update so concurrent checkouts cannot oversell.
func (i *Inventory) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, name string, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}
	ok, err := i.repo.WithTx(tx).AdjustStock(ctx, productID, -quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("%s is out of stock", name)).
			WithDetails(map[string]any{"product_id": productID, "requested": quantity})
	}
	return nil
}

// Release returns previously reserved stock.
func (i *Inventory) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	ok, err := i.repo.WithTx(tx).AdjustStock(ctx, productID, quantity)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
	}
	return nil
}
