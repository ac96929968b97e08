package core

import (
	"sync"

	"github.com/pawlink/ble-core/api/bluetooth"
)

// roleRegistry holds the current role to peripheral bindings.
//
// A peripheral identity may be bound to at most one role at a time: binding
// the same identity to a second role silently unbinds it from the first,
// since one physical device cannot serve two roles simultaneously.
type roleRegistry struct {
	mu     sync.RWMutex
	byRole map[bluetooth.Role]bluetooth.PeripheralIdentity
}

func newRoleRegistry() *roleRegistry {
	return &roleRegistry{
		byRole: make(map[bluetooth.Role]bluetooth.PeripheralIdentity, len(bluetooth.Roles())),
	}
}

// Assign binds the peripheral to the role, replacing any existing binding
// for that role, and returns the previous binding if there was one.
// Pairing and replacing are the same operation.
func (r *roleRegistry) Assign(role bluetooth.Role, peripheral bluetooth.PeripheralIdentity) *bluetooth.RoleAssignment {
	r.mu.Lock()
	defer r.mu.Unlock()

	var previous *bluetooth.RoleAssignment
	if prev, ok := r.byRole[role]; ok {
		previous = &bluetooth.RoleAssignment{Role: role, Peripheral: prev}
	}

	for other, bound := range r.byRole {
		if other != role && bound.ID == peripheral.ID {
			delete(r.byRole, other)
		}
	}

	r.byRole[role] = peripheral

	return previous
}

// Unassign clears the binding for the role. It never disconnects; the
// caller orchestrates disconnects so that a disconnect failure can never
// block forgetting a device.
func (r *roleRegistry) Unassign(role bluetooth.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byRole, role)
}

// Get returns the current assignment for the role, if any.
func (r *roleRegistry) Get(role bluetooth.Role) (bluetooth.RoleAssignment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peripheral, ok := r.byRole[role]
	if !ok {
		return bluetooth.RoleAssignment{}, false
	}

	return bluetooth.RoleAssignment{Role: role, Peripheral: peripheral}, true
}

// All returns every current assignment in role priority order.
func (r *roleRegistry) All() []bluetooth.RoleAssignment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assignments := make([]bluetooth.RoleAssignment, 0, len(r.byRole))
	for _, role := range bluetooth.Roles() {
		if peripheral, ok := r.byRole[role]; ok {
			assignments = append(assignments, bluetooth.RoleAssignment{Role: role, Peripheral: peripheral})
		}
	}

	return assignments
}
