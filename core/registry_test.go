package core

import (
	"testing"

	"github.com/pawlink/ble-core/api/bluetooth"
	"gotest.tools/assert"
)

func TestAssignReplacesExisting(t *testing.T) {
	r := newRoleRegistry()

	previous := r.Assign(bluetooth.RoleDog, dogPeripheral)
	assert.Assert(t, previous == nil)

	previous = r.Assign(bluetooth.RoleDog, humanPeripheral)
	assert.Assert(t, previous != nil)
	assert.Equal(t, previous.Peripheral.ID, dogPeripheral.ID)

	assignment, ok := r.Get(bluetooth.RoleDog)
	assert.Assert(t, ok)
	assert.Equal(t, assignment.Peripheral.ID, humanPeripheral.ID)
	assert.Equal(t, len(r.All()), 1)
}

func TestAssignStealsFromOtherRole(t *testing.T) {
	r := newRoleRegistry()

	r.Assign(bluetooth.RoleDog, dogPeripheral)
	r.Assign(bluetooth.RoleHuman, dogPeripheral)

	_, ok := r.Get(bluetooth.RoleDog)
	assert.Assert(t, !ok)

	assignment, ok := r.Get(bluetooth.RoleHuman)
	assert.Assert(t, ok)
	assert.Equal(t, assignment.Peripheral.ID, dogPeripheral.ID)
}

func TestUnassign(t *testing.T) {
	r := newRoleRegistry()

	r.Assign(bluetooth.RoleVest, vestPeripheral)
	r.Unassign(bluetooth.RoleVest)

	_, ok := r.Get(bluetooth.RoleVest)
	assert.Assert(t, !ok)

	// Unassigning an empty role never fails.
	r.Unassign(bluetooth.RoleVest)
}

func TestAllReturnsPriorityOrder(t *testing.T) {
	r := newRoleRegistry()

	r.Assign(bluetooth.RoleVest, vestPeripheral)
	r.Assign(bluetooth.RoleDog, dogPeripheral)

	all := r.All()
	assert.Equal(t, len(all), 2)
	assert.Equal(t, all[0].Role, bluetooth.RoleDog)
	assert.Equal(t, all[1].Role, bluetooth.RoleVest)
}
