package orders

import (
	"fmt"

	"github.com/agromart/agromart-backend/pkg/enums"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusProcessing,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusShipped,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusShipped: {
		enums.OrderStatusDelivered,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusRefunded,
	},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns INVALID_STATUS_TRANSITION for moves the lifecycle does not allow.
func ValidateTransition(from, to enums.OrderStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", to))
	}
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInvalidStatusTransition,
		fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

// restocks reports whether entering status returns reserved stock to inventory.
func restocks(status enums.OrderStatus) bool {
	return status == enums.OrderStatusCancelled || status == enums.OrderStatusFailed
}
