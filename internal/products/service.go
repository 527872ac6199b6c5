package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agromart/agromart-backend/pkg/db"
	"github.com/agromart/agromart-backend/pkg/db/models"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/pagination"
	"github.com/agromart/agromart-backend/pkg/types"
)

const (
	maxSlugAttempts        = 20
	productSlugConstraint  = "products_slug_key"
	categorySlugConstraint = "categories_slug_key"
)

// Service exposes catalog browsing and administration.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*types.Page[ProductDTO], error)
	GetProduct(ctx context.Context, idOrSlug string) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (*ProductDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	CategoryID    uuid.UUID `json:"category_id" validate:"required"`
	Name          string    `json:"name" validate:"required,min=2,max=160"`
	Description   *string   `json:"description,omitempty" validate:"omitempty,max=4000"`
	Unit          string    `json:"unit" validate:"omitempty,max=32"`
	Price         int64     `json:"price" validate:"min=0"`
	OriginalPrice *int64    `json:"original_price,omitempty" validate:"omitempty,min=0"`
	Stock         int       `json:"stock" validate:"min=0"`
	ImageURL      *string   `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive      *bool     `json:"is_active,omitempty"`
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	Name          *string    `json:"name,omitempty" validate:"omitempty,min=2,max=160"`
	Description   *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	Unit          *string    `json:"unit,omitempty" validate:"omitempty,max=32"`
	Price         *int64     `json:"price,omitempty" validate:"omitempty,min=0"`
	OriginalPrice *int64     `json:"original_price,omitempty" validate:"omitempty,min=0"`
	Stock         *int       `json:"stock,omitempty" validate:"omitempty,min=0"`
	ImageURL      *string    `json:"image_url,omitempty" validate:"omitempty,url"`
	IsActive      *bool      `json:"is_active,omitempty"`
}

type CreateCategoryInput struct {
	Name        string  `json:"name" validate:"required,min=2,max=80"`
	Slug        string  `json:"slug,omitempty" validate:"omitempty,max=80"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

type ratingReader interface {
	RatingStats(ctx context.Context, productID uuid.UUID) (float64, int64, error)
}

type service struct {
	repo    *Repository
	ratings ratingReader
}

// NewService constructs a product service instance. ratings may be nil, in which
// case product detail omits the review summary.
func NewService(repo *Repository, ratings ratingReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, ratings: ratings}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*types.Page[ProductDTO], error) {
	if f := input.Filters; f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_min cannot exceed price_max")
	}
	if _, err := pagination.ParseCursor(input.Pagination.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, next, err := s.repo.ListProducts(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewProductDTO(&rows[i], nil))
	}
	return &types.Page[ProductDTO]{Items: items, NextCursor: next}, nil
}

// GetProduct accepts either a UUID or a slug. Inactive products are hidden.
func (s *service) GetProduct(ctx context.Context, idOrSlug string) (*ProductDTO, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	var (
		product *models.Product
		err     error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		product, err = s.repo.FindByID(ctx, id)
	} else {
		product, err = s.repo.FindBySlug(ctx, strings.ToLower(idOrSlug))
	}
	if err != nil {
		return nil, mapProductErr(err)
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	var rating *RatingSummary
	if s.ratings != nil {
		avg, count, err := s.ratings.RatingStats(ctx, product.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rating summary")
		}
		rating = &RatingSummary{Average: avg, Count: count}
	}
	return NewProductDTO(product, rating), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Price < 0 || input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price and stock must not be negative")
	}
	category, err := s.repo.FindCategoryByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	slug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		CategoryID:    category.ID,
		Name:          name,
		Slug:          slug,
		Description:   input.Description,
		Unit:          defaultUnit(input.Unit),
		Price:         input.Price,
		OriginalPrice: input.OriginalPrice,
		Stock:         input.Stock,
		ImageURL:      input.ImageURL,
		IsActive:      true,
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err, productSlugConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	created.Category = category
	return NewProductDTO(created, nil), nil
}

func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, mapProductErr(err)
	}

	updates := map[string]any{}
	if input.CategoryID != nil && *input.CategoryID != product.CategoryID {
		category, err := s.repo.FindCategoryByID(ctx, *input.CategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		updates["category_id"] = category.ID
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Unit != nil {
		updates["unit"] = defaultUnit(*input.Unit)
	}
	if input.Price != nil {
		if *input.Price < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		updates["price"] = *input.Price
	}
	if input.OriginalPrice != nil {
		updates["original_price"] = *input.OriginalPrice
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
		}
		updates["stock"] = *input.Stock
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if err := s.repo.UpdateFields(ctx, productID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mapProductErr(err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	updated, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, mapProductErr(err)
	}
	return NewProductDTO(updated, nil), nil
}

// DeleteProduct hides the product from the storefront; order history keeps referencing it.
func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	err := s.repo.UpdateFields(ctx, productID, map[string]any{"is_active": false})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return mapProductErr(err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
	}
	return nil
}

func (s *service) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (*ProductDTO, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return nil, mapProductErr(err)
	}
	ok, err := s.repo.AdjustStock(ctx, productID, delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock cannot go below zero").
			WithDetails(map[string]any{"delta": delta})
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, mapProductErr(err)
	}
	return NewProductDTO(product, nil), nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewCategoryDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug cannot be derived from name")
	}

	created, err := s.repo.CreateCategory(ctx, &models.Category{
		Name:        name,
		Slug:        slug,
		Description: input.Description,
	})
	if err != nil {
		if db.IsUniqueViolation(err, categorySlugConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("category %s already exists", slug))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return NewCategoryDTO(created), nil
}

// uniqueSlug derives a slug from name and appends -2, -3, ... until it is free.
func (s *service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "slug cannot be derived from name")
	}
	candidate := base
	for attempt := 2; attempt <= maxSlugAttempts+1; attempt++ {
		exists, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique slug")
}

func mapProductErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
}

func defaultUnit(unit string) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return "unit"
	}
	return unit
}
