package models

// All lists every persisted model in foreign-key dependency order.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&PaymentIntent{},
		&Address{},
		&Review{},
		&Notification{},
		&WishlistItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
