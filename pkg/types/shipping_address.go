package types

import "strings"

// ShippingAddress is the delivery address frozen onto an order. It is persisted as JSON.
type ShippingAddress struct {
	FullName   string  `json:"full_name" validate:"required,max=120"`
	Phone      string  `json:"phone" validate:"required,min=7,max=20"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=80"`
	State      string  `json:"state" validate:"required,max=80"`
	PostalCode string  `json:"postal_code" validate:"required,max=12"`
	Country    string  `json:"country" validate:"omitempty,len=2"`
}

// Normalize trims whitespace and applies the default country.
func (a ShippingAddress) Normalize() ShippingAddress {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	if a.Line2 != nil {
		trimmed := strings.TrimSpace(*a.Line2)
		if trimmed == "" {
			a.Line2 = nil
		} else {
			a.Line2 = &trimmed
		}
	}
	return a
}

// IsComplete reports whether every mandatory field is present.
func (a ShippingAddress) IsComplete() bool {
	return a.FullName != "" && a.Phone != "" && a.Line1 != "" &&
		a.City != "" && a.State != "" && a.PostalCode != ""
}

// DefaultCountry is applied when an address omits its ISO country code.
const DefaultCountry = "IN"
