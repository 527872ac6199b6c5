package enums

// PaymentMethod is how the buyer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetBanking PaymentMethod = "netbanking"
)

var paymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodCard,
	PaymentMethodUPI,
	PaymentMethodNetBanking,
}

func (p PaymentMethod) IsValid() bool { return oneOf(p, paymentMethods) }

// IsOnline reports whether the method is charged through the gateway.
// Cash on delivery is settled offline.
func (p PaymentMethod) IsOnline() bool {
	return p.IsValid() && p != PaymentMethodCOD
}

// PaymentStatus is the state of a payment intent.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)
