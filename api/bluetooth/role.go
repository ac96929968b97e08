package bluetooth

import "github.com/pawlink/ble-core/api/errorkinds"

// Role is a semantic slot a peripheral is bound to, independent of the
// peripheral's hardware identity. Exactly one peripheral may be assigned
// per role at a time.
type Role uint8

const (
	// RoleDog is the primary animal-worn sensor.
	RoleDog Role = iota

	// RoleHuman is the optional human-worn sensor.
	RoleHuman

	// RoleVest is the optional actuator vest.
	RoleVest
)

// Roles returns all roles in connection priority order.
// The animal sensor is primary and always comes first.
func Roles() []Role {
	return []Role{RoleDog, RoleHuman, RoleVest}
}

// String converts a Role to a string.
func (r Role) String() string {
	switch r {
	case RoleDog:
		return "dog"
	case RoleHuman:
		return "human"
	case RoleVest:
		return "vest"
	}

	return "unknown"
}

// Valid reports whether the role is a known role.
func (r Role) Valid() bool {
	return r <= RoleVest
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "dog":
		return RoleDog, nil
	case "human":
		return RoleHuman, nil
	case "vest":
		return RoleVest, nil
	}

	return 0, errorkinds.ErrUnknownRole
}
