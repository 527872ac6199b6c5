package addresses

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/types"
)

const defaultLabel = "home"

// AddressInput is the body for creating or replacing an address.
type AddressInput struct {
	Label      string  `json:"label" validate:"omitempty,max=40"`
	FullName   string  `json:"full_name" validate:"required,max=120"`
	Phone      string  `json:"phone" validate:"required,min=7,max=20"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=80"`
	State      string  `json:"state" validate:"required,max=80"`
	PostalCode string  `json:"postal_code" validate:"required,max=12"`
	Country    string  `json:"country" validate:"omitempty,len=2"`
	IsDefault  bool    `json:"is_default"`
}

type AddressDTO struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	FullName   string    `json:"full_name"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewAddressDTO(a *models.Address) AddressDTO {
	return AddressDTO{
		ID:         a.ID,
		Label:      a.Label,
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		IsDefault:  a.IsDefault,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// normalized returns the input trimmed and with defaults applied, reusing the
// shipping address rules so saved entries check out cleanly.
func (in AddressInput) normalized() (AddressInput, bool) {
	shipping := types.ShippingAddress{
		FullName:   in.FullName,
		Phone:      in.Phone,
		Line1:      in.Line1,
		Line2:      in.Line2,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Country:    in.Country,
	}.Normalize()

	out := in
	out.Label = strings.ToLower(strings.TrimSpace(in.Label))
	if out.Label == "" {
		out.Label = defaultLabel
	}
	out.FullName = shipping.FullName
	out.Phone = shipping.Phone
	out.Line1 = shipping.Line1
	out.Line2 = shipping.Line2
	out.City = shipping.City
	out.State = shipping.State
	out.PostalCode = shipping.PostalCode
	out.Country = shipping.Country
	return out, shipping.IsComplete()
}

func (in AddressInput) apply(a *models.Address) {
	a.Label = in.Label
	a.FullName = in.FullName
	a.Phone = in.Phone
	a.Line1 = in.Line1
	a.Line2 = in.Line2
	a.City = in.City
	a.State = in.State
	a.PostalCode = in.PostalCode
	a.Country = in.Country
}
