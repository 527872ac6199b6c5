package reviews

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
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/pagination"
	"github.com/agromart/agromart-backend/pkg/types"
)

// Service handles product reviews. A user reviews a product at most once.
type Service interface {
	Create(ctx context.Context, userID, productID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (types.Page[ReviewDTO], error)
	// Delete removes a review. Admins may delete any review.
	Delete(ctx context.Context, userID uuid.UUID, isAdmin bool, reviewID uuid.UUID) error
	Summary(ctx context.Context, productID uuid.UUID) (*Summary, error)
	RatingStats(ctx context.Context, productID uuid.UUID) (float64, int64, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, userID, productID uuid.UUID, input CreateReviewInput) (*ReviewDTO, error) {
	if input.Rating < types.MinRating || input.Rating > types.MaxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"rating": input.Rating})
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, productID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
	}

	review := &models.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    input.Rating,
		Comment:   trimmedComment(input.Comment),
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, uniqueReviewConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}

	saved, err := s.repo.FindByID(ctx, review.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload review")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"product_id": productID.String(), "rating": review.Rating})
	s.logg.Info(logCtx, "review created")

	dto := NewReviewDTO(saved)
	return &dto, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (types.Page[ReviewDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return types.Page[ReviewDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return types.Page[ReviewDTO]{}, err
	}
	rows, next, err := s.repo.ListByProduct(ctx, productID, cursor, params.Limit)
	if err != nil {
		return types.Page[ReviewDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	items := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		items = append(items, NewReviewDTO(&rows[i]))
	}
	return types.Page[ReviewDTO]{Items: items, NextCursor: next}, nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, isAdmin bool, reviewID uuid.UUID) error {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if review.UserID != userID && !isAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "review does not belong to user")
	}
	if err := s.repo.Delete(ctx, review.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	return nil
}

func (s *service) Summary(ctx context.Context, productID uuid.UUID) (*Summary, error) {
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	hist, err := s.repo.Histogram(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate ratings")
	}
	latest, err := s.repo.LatestAt(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load latest review")
	}
	return &Summary{
		ProductID:    productID,
		Average:      hist.Average(),
		Count:        hist.Total(),
		Distribution: hist,
		LastReviewAt: latest,
	}, nil
}

// RatingStats feeds the rating block of the product detail view.
func (s *service) RatingStats(ctx context.Context, productID uuid.UUID) (float64, int64, error) {
	hist, err := s.repo.Histogram(ctx, productID)
	if err != nil {
		return 0, 0, err
	}
	return hist.Average(), hist.Total(), nil
}

func (s *service) requireProduct(ctx context.Context, productID uuid.UUID) error {
	ok, err := s.repo.ProductVisible(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func trimmedComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
