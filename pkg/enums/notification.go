package enums

// NotificationType groups buyer notifications in the inbox.
type NotificationType string

const (
	NotificationTypeOrder   NotificationType = "order"
	NotificationTypePayment NotificationType = "payment"
)

func (n NotificationType) IsValid() bool {
	return oneOf(n, []NotificationType{NotificationTypeOrder, NotificationTypePayment})
}
