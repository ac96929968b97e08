package bluetooth

import (
	"context"
	"time"

	"github.com/pawlink/ble-core/api/eventbus"
)

// Manager is the single entry point external collaborators interact with.
// All methods are safe to call even if no scan is active or no role is
// assigned; they report a typed failure or no-op rather than panicking on
// missing preconditions.
type Manager interface {
	// StartScan begins platform discovery. Idempotent: starting while a
	// scan is active is a no-op. Returns errorkinds.ErrScanUnavailable if
	// the platform scan primitive is unavailable or denied; state is left
	// unchanged in that case.
	StartScan(ctx context.Context) error

	// ScanFor runs a time-boxed scan: it starts discovery and stops it
	// after the given duration, or when ctx is cancelled.
	ScanFor(ctx context.Context, duration time.Duration) error

	// StopScan ends discovery. Idempotent; late discovery callbacks are
	// discarded.
	StopScan()

	// Discovered returns the peripherals found by the active scan session,
	// in first-seen order, deduplicated by ID.
	Discovered() []PeripheralIdentity

	// AssignRole binds the peripheral to the role, replacing any existing
	// assignment for that role, and returns the previous assignment if
	// there was one. Binding the same peripheral to a second role silently
	// unbinds it from the first. Assignment never connects; connecting is
	// a separate explicit step.
	AssignRole(peripheral PeripheralIdentity, role Role) (previous *RoleAssignment)

	// UnassignRole clears the binding for the role. It does not itself
	// disconnect.
	UnassignRole(role Role)

	// Assignment returns the current assignment for the role, if any.
	Assignment(role Role) (RoleAssignment, bool)

	// Assignments returns all current assignments in role priority order.
	Assignments() []RoleAssignment

	// Connect drives the assigned peripheral for the role to connected.
	// A no-op while the role is already connecting or connected. With no
	// assignment it transitions the role to failed with
	// errorkinds.ErrNotAssigned and issues no platform call.
	Connect(ctx context.Context, role Role) error

	// Disconnect is best-effort: the role always transitions to
	// disconnected locally, regardless of whether the platform call
	// succeeds.
	Disconnect(ctx context.Context, role Role) error

	// AutoConnectAll sequentially attempts Connect for every assigned
	// role, in priority order, with a cooldown between attempts. Roles
	// already connected are skipped without delay.
	AutoConnectAll(ctx context.Context) error

	// Connections returns the latest connection snapshot.
	Connections() ConnectionSnapshot

	// OnChange registers a snapshot listener and returns a token for
	// RemoveListener. Each listener observes a monotonically
	// non-decreasing sequence of snapshots.
	OnChange(listener func(ConnectionSnapshot)) ListenerToken

	// RemoveListener removes a previously registered snapshot listener.
	RemoveListener(token ListenerToken)

	// On subscribes to a named event channel: "device", "connected",
	// "disconnected" or "connections". The returned subscriber's channel
	// receives event payloads; call Off (or SubscriberID.Unsubscribe) to
	// detach.
	On(event string) (eventbus.SubscriberID, error)

	// Off detaches a subscriber obtained from On.
	Off(sub eventbus.SubscriberID)

	// Close stops scanning, disconnects all roles and releases the radio.
	Close() error
}

// ListenerToken identifies a registered snapshot listener.
type ListenerToken string

// AssignmentStore is the persistence adapter boundary. The core emits
// role-assignment facts to it; an external collaborator persists them and
// replays them on startup. Store failures are the adapter's concern and
// never roll back the in-memory assignment.
type AssignmentStore interface {
	RoleAssigned(assignment RoleAssignment)
	RoleUnassigned(role Role)
}

// ReplayAssignments feeds previously persisted assignments back into the
// manager, typically once at application start before AutoConnectAll.
func ReplayAssignments(m Manager, saved []RoleAssignment) {
	for _, a := range saved {
		if !a.Role.Valid() || a.Peripheral.IsZero() {
			continue
		}

		m.AssignRole(a.Peripheral, a.Role)
	}
}
