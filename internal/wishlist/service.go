package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/pagination"
	"github.com/agromart/agromart-backend/pkg/types"
)

// Service exposes wishlist operations for the signed-in customer.
type Service interface {
	GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (*types.Page[WishlistItemDTO], error)
	GetWishlistIDs(ctx context.Context, userID uuid.UUID) (*WishlistIDsDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
}

type wishlistRepository interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	ListItems(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WishlistItem, string, error)
	ProductIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	wishlistRepo wishlistRepository
	productRepo  productReader
}

// NewService constructs the wishlist service.
func NewService(wishlistRepo wishlistRepository, productRepo productReader) (Service, error) {
	if wishlistRepo == nil {
		return nil, fmt.Errorf("wishlist repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{wishlistRepo: wishlistRepo, productRepo: productRepo}, nil
}

func (s *service) GetWishlist(ctx context.Context, userID uuid.UUID, params pagination.Params) (*types.Page[WishlistItemDTO], error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.wishlistRepo.ListItems(ctx, userID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}
	items := make([]WishlistItemDTO, 0, len(rows))
	for i := range rows {
		items = append(items, newWishlistItemDTO(&rows[i]))
	}
	return &types.Page[WishlistItemDTO]{Items: items, NextCursor: next}, nil
}

func (s *service) GetWishlistIDs(ctx context.Context, userID uuid.UUID) (*WishlistIDsDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	ids, err := s.wishlistRepo.ProductIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist ids")
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return &WishlistIDsDTO{ProductIDs: ids}, nil
}

// AddItem saves an active product. Saving it twice is a no-op.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	p, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !p.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := s.wishlistRepo.AddItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add wishlist item")
	}
	return nil
}

// RemoveItem drops the wishlist entry regardless of prior state.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if err := s.wishlistRepo.RemoveItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	return nil
}
