package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/internal/coupons"
	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/metrics"
)

const (
	defaultSyncPerItemCap = 50
	cartUserConstraint    = "carts_user_id_key"
)

// Service exposes the shopper cart operations.
type Service interface {
	View(ctx context.Context, userID uuid.UUID, couponCode string) (*CartDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Sync(ctx context.Context, userID uuid.UUID, items []LocalItem) (*CartDTO, error)
}

// ServiceParams wires the cart service dependencies.
type ServiceParams struct {
	Repo           CartRepository
	Products       productLoader
	Coupons        coupons.Validator
	DB             txRunner
	Logger         *logger.Logger
	Metrics        *metrics.Commerce
	SyncPerItemCap int
}

type service struct {
	repo     CartRepository
	products productLoader
	coupons  coupons.Validator
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.Commerce
	syncCap  int
}

// NewService builds a cart service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	syncCap := params.SyncPerItemCap
	if syncCap <= 0 {
		syncCap = defaultSyncPerItemCap
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		coupons:  params.Coupons,
		tx:       params.DB,
		logg:     params.Logger,
		metrics:  params.Metrics,
		syncCap:  syncCap,
	}, nil
}

func (s *service) View(ctx context.Context, userID uuid.UUID, couponCode string) (*CartDTO, error) {
	cart, err := s.getOrCreate(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	totals := ComputeTotals(cart.Items, 0)
	if couponCode == "" {
		return newCartDTO(cart, totals), nil
	}

	result, err := s.coupons.Validate(ctx, couponCode, totals.Subtotal)
	if err != nil {
		return nil, err
	}
	dto := newCartDTO(cart, ComputeTotals(cart.Items, result.Discount))
	dto.Coupon = coupons.NewValidationDTO(result, totals.Subtotal)
	return dto, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": quantity})
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.getOrCreate(ctx, repo, userID)
		if err != nil {
			return err
		}

		item, err := repo.FindItem(ctx, cart.ID, productID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = &models.CartItem{CartID: cart.ID, ProductID: productID}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		requested := item.Quantity + quantity
		if product.Stock < requested {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("only %d of %s available", product.Stock, product.Name)).
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  product.Stock,
					"requested":  requested,
				})
		}

		item.Quantity = requested
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.View(ctx, userID, "")
}

func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must not be negative").
			WithDetails(map[string]any{"quantity": quantity})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.ownedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		if quantity == 0 {
			if err := repo.DeleteItem(ctx, item.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
			}
			return nil
		}

		product := item.Product
		if product == nil || !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if quantity > product.Stock {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d of %s available", product.Stock, product.Name)).
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  product.Stock,
					"requested":  quantity,
				})
		}

		item.Quantity = quantity
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.View(ctx, userID, "")
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error) {
	item, err := s.ownedItem(ctx, s.repo, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.View(ctx, userID, "")
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// getOrCreate returns the user's cart, creating an empty one on first access.
func (s *service) getOrCreate(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	created, err := repo.Create(ctx, &models.Cart{UserID: userID})
	if err != nil {
		if db.IsUniqueViolation(err, cartUserConstraint) {
			return repo.FindByUser(ctx, userID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	created.Items = []models.CartItem{}
	return created, nil
}

// ownedItem loads a cart line and hides lines that belong to other users.
func (s *service) ownedItem(ctx context.Context, repo CartRepository, userID, itemID uuid.UUID) (*models.CartItem, error) {
	notFound := pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")

	cart, err := repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	item, err := repo.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if item.CartID != cart.ID {
		return nil, notFound
	}
	return item, nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}
