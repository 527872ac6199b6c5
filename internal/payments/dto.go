package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
)

// IntentDTO is the payment attempt returned to the buyer.
type IntentDTO struct {
	ID            uuid.UUID           `json:"id"`
	OrderID       uuid.UUID           `json:"order_id"`
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	GatewayRef    *string             `json:"gateway_ref,omitempty"`
	FailureReason *string             `json:"failure_reason,omitempty"`
	OrderStatus   enums.OrderStatus   `json:"order_status,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func NewIntentDTO(intent *models.PaymentIntent, orderStatus enums.OrderStatus) *IntentDTO {
	return &IntentDTO{
		ID:            intent.ID,
		OrderID:       intent.OrderID,
		Method:        intent.Method,
		Status:        intent.Status,
		Amount:        intent.Amount,
		GatewayRef:    intent.GatewayRef,
		FailureReason: intent.FailureReason,
		OrderStatus:   orderStatus,
		CreatedAt:     intent.CreatedAt,
		UpdatedAt:     intent.UpdatedAt,
	}
}
