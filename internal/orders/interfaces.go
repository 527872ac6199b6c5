package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, string, error)
	ListAll(ctx context.Context, status *enums.OrderStatus, cursor *pagination.Cursor, limit int) ([]models.Order, string, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, orderStatus enums.OrderStatus, status enums.PaymentStatus) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockKeeper moves product stock inside the caller's transaction.
type StockKeeper interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, name string, quantity int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
}

type addressBook interface {
	FindForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error)
}
