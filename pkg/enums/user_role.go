package enums

// UserRole is carried in access tokens and checked by RequireRole.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	return oneOf(r, []UserRole{UserRoleCustomer, UserRoleAdmin})
}
