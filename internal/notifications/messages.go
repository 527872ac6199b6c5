package notifications

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

// notificationFor maps a decoded event payload to the buyer notification it
// produces. Transitions already covered by payment events return nil.
func notificationFor(payload any) *models.Notification {
	switch evt := payload.(type) {
	case *payloads.OrderCreatedEvent:
		return orderNotification(evt.UserID, evt.OrderID,
			"Order placed",
			fmt.Sprintf("Your order %s for ₹%s has been placed.", evt.OrderNumber, evt.Total.StringFixed(2)))
	case *payloads.OrderCanceledEvent:
		return orderNotification(evt.UserID, evt.OrderID,
			"Order cancelled",
			fmt.Sprintf("Your order %s has been cancelled.", evt.OrderNumber))
	case *payloads.OrderStatusChangedEvent:
		title, ok := statusTitles[evt.To]
		if !ok {
			return nil
		}
		return orderNotification(evt.UserID, evt.OrderID,
			title,
			fmt.Sprintf("Your order %s is now %s.", evt.OrderNumber, evt.To))
	case *payloads.PaymentStatusEvent:
		n := &models.Notification{
			UserID: evt.UserID,
			Type:   enums.NotificationTypePayment,
			Link:   orderLink(evt.OrderID),
		}
		switch evt.Status {
		case enums.PaymentStatusSucceeded:
			n.Title = "Payment received"
			n.Message = fmt.Sprintf("We received your payment of ₹%s.", evt.Amount.StringFixed(2))
		case enums.PaymentStatusFailed:
			n.Title = "Payment failed"
			n.Message = fmt.Sprintf("Your payment of ₹%s could not be completed.", evt.Amount.StringFixed(2))
			if evt.FailureReason != nil && *evt.FailureReason != "" {
				n.Message += " Reason: " + *evt.FailureReason + "."
			}
		default:
			return nil
		}
		return n
	default:
		return nil
	}
}

var statusTitles = map[enums.OrderStatus]string{
	enums.OrderStatusShipped:   "Order shipped",
	enums.OrderStatusDelivered: "Order delivered",
	enums.OrderStatusRefunded:  "Order refunded",
}

func orderNotification(userID, orderID uuid.UUID, title, message string) *models.Notification {
	return &models.Notification{
		UserID:  userID,
		Type:    enums.NotificationTypeOrder,
		Title:   title,
		Message: message,
		Link:    orderLink(orderID),
	}
}

func orderLink(orderID uuid.UUID) *string {
	link := "/orders/" + orderID.String()
	return &link
}
