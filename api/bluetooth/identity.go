package bluetooth

// PeripheralID is the opaque, stable hardware identifier of a peripheral,
// as reported by the platform radio stack. Identity equality is by ID only.
type PeripheralID string

// PeripheralIdentity describes a discoverable peripheral.
type PeripheralIdentity struct {
	ID   PeripheralID `json:"id"`
	Name string       `json:"name,omitempty"`
}

// IsZero reports whether the identity is unset.
func (p PeripheralIdentity) IsZero() bool {
	return p.ID == ""
}

// String returns a printable form of the identity.
func (p PeripheralIdentity) String() string {
	if p.Name == "" {
		return string(p.ID)
	}

	return p.Name + " (" + string(p.ID) + ")"
}

// RoleAssignment binds a discovered peripheral to a role.
type RoleAssignment struct {
	Role       Role               `json:"role"`
	Peripheral PeripheralIdentity `json:"peripheral"`
}
