package bluetooth

import "github.com/pawlink/ble-core/api/errorkinds"

// EventID identifies a named event channel on the event stream.
// It implements eventbus.EventID.
type EventID uint

const (
	EventNone EventID = iota

	// EventDevice is published when a peripheral is discovered during a scan.
	// Payload: DeviceFound.
	EventDevice

	// EventConnected is published when a role transitions to connected.
	// Payload: RoleConnection.
	EventConnected

	// EventDisconnected is published when a role leaves the connected state.
	// Payload: RoleConnection.
	EventDisconnected

	// EventConnections is published on every snapshot change.
	// Payload: ConnectionSnapshot.
	EventConnections

	// EventRoleAssigned is published when a peripheral is bound to a role.
	// Payload: RoleAssignment.
	EventRoleAssigned
)

// Value returns the numeric value of the event ID.
func (e EventID) Value() uint {
	return uint(e)
}

// String returns the event channel name.
func (e EventID) String() string {
	switch e {
	case EventDevice:
		return "device"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventConnections:
		return "connections"
	case EventRoleAssigned:
		return "role-assigned"
	}

	return "none"
}

// EventByName resolves an event channel name to its ID.
func EventByName(name string) (EventID, error) {
	for _, e := range []EventID{EventDevice, EventConnected, EventDisconnected, EventConnections, EventRoleAssigned} {
		if e.String() == name {
			return e, nil
		}
	}

	return EventNone, errorkinds.ErrUnknownEvent
}

// DeviceFound is the payload of EventDevice.
type DeviceFound struct {
	Peripheral PeripheralIdentity `json:"peripheral"`
}

// RoleConnection is the payload of EventConnected and EventDisconnected.
type RoleConnection struct {
	Role       Role               `json:"role"`
	Peripheral PeripheralIdentity `json:"peripheral"`
	Status     ConnectionStatus   `json:"status"`
}
