package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/types"
)

type CreateReviewInput struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

type ReviewDTO struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	UserID     uuid.UUID `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary aggregates the reviews of one product.
type Summary struct {
	ProductID    uuid.UUID             `json:"product_id"`
	Average      float64               `json:"average"`
	Count        int64                 `json:"count"`
	Distribution types.RatingHistogram `json:"distribution"`
	LastReviewAt *time.Time            `json:"last_review_at,omitempty"`
}

func NewReviewDTO(r *models.Review) ReviewDTO {
	dto := ReviewDTO{
		ID:        r.ID,
		ProductID: r.ProductID,
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
	if r.User != nil {
		dto.AuthorName = r.User.Name
	}
	return dto
}
