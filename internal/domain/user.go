package domain

// Role is the closed set of user roles. The loosely typed role strings of the
// client are parsed once at the boundary and matched exhaustively after that.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleOrganizer, RoleAdmin:
		return Role(s), nil
	}
	return "", ErrInvalidInput
}

// MaxAdmins bounds the number of admin-role users.
const MaxAdmins = 2
