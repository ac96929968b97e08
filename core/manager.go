// Package core implements the multi-role connection manager: discovery,
// role assignment, connection lifecycle orchestration and state broadcast
// on top of an injectable platform radio primitive.
package core

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/config"
	"github.com/pawlink/ble-core/api/errorkinds"
	"github.com/pawlink/ble-core/api/eventbus"
)

// Manager composes the scanner, role registry, connection orchestrator and
// state store behind the bluetooth.Manager facade. One instance is
// constructed at startup and passed by handle to all consumers; tests
// construct isolated instances against a simulated radio.
type Manager struct {
	cfg   config.Configuration
	radio bluetooth.Radio
	log   *slog.Logger

	registry     *roleRegistry
	scanner      *scanner
	orchestrator *orchestrator
	states       *stateStore

	assignments bluetooth.AssignmentStore

	created time.Time
	closed  atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithAssignmentStore attaches the persistence adapter that receives
// role-assignment facts.
func WithAssignmentStore(store bluetooth.AssignmentStore) Option {
	return func(m *Manager) {
		m.assignments = store
	}
}

var _ bluetooth.Manager = (*Manager)(nil)

// New returns a Manager driving the given radio.
func New(radio bluetooth.Radio, cfg config.Configuration, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		radio:   radio,
		log:     slog.Default(),
		created: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.registry = newRoleRegistry()
	m.states = newStateStore()
	m.scanner = newScanner(radio, m.log)
	m.orchestrator = newOrchestrator(radio, m.registry, m.states, cfg, m.log)

	return m
}

// StartScan begins platform discovery. Idempotent.
func (m *Manager) StartScan(ctx context.Context) error {
	if m.closed.Load() {
		return errorkinds.ErrSessionClosed
	}

	return m.scanner.StartScan(ctx)
}

// ScanFor runs a time-boxed scan, stopping discovery after the duration or
// when ctx is cancelled, whichever comes first.
func (m *Manager) ScanFor(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		duration = m.cfg.ScanDuration
	}

	if err := m.StartScan(ctx); err != nil {
		return err
	}

	select {
	case <-time.After(duration):
	case <-ctx.Done():
	}
	m.StopScan()

	return ctx.Err()
}

// StopScan ends discovery. Idempotent.
func (m *Manager) StopScan() {
	m.scanner.StopScan()
}

// Discovered returns the active scan session's peripherals in first-seen
// order.
func (m *Manager) Discovered() []bluetooth.PeripheralIdentity {
	return m.scanner.Discovered()
}

// AssignRole binds the peripheral to the role and returns the previous
// assignment, if any. Purely in-memory; it never fails and never connects.
// The resulting assignment fact is emitted to the persistence adapter and
// the event stream.
func (m *Manager) AssignRole(peripheral bluetooth.PeripheralIdentity, role bluetooth.Role) *bluetooth.RoleAssignment {
	previous := m.registry.Assign(role, peripheral)

	assignment := bluetooth.RoleAssignment{Role: role, Peripheral: peripheral}
	m.log.Info("role assigned", "role", role.String(), "peripheral", peripheral.ID)

	if m.assignments != nil {
		m.assignments.RoleAssigned(assignment)
	}
	eventbus.Publish(bluetooth.EventRoleAssigned, assignment)

	return previous
}

// UnassignRole clears the binding for the role. It does not disconnect;
// callers wanting both disconnect first (or after), so that a disconnect
// failure can never block forgetting the device.
func (m *Manager) UnassignRole(role bluetooth.Role) {
	m.registry.Unassign(role)
	m.log.Info("role unassigned", "role", role.String())

	if m.assignments != nil {
		m.assignments.RoleUnassigned(role)
	}
}

// Assignment returns the current assignment for the role, if any.
func (m *Manager) Assignment(role bluetooth.Role) (bluetooth.RoleAssignment, bool) {
	return m.registry.Get(role)
}

// Assignments returns all current assignments in role priority order.
func (m *Manager) Assignments() []bluetooth.RoleAssignment {
	return m.registry.All()
}

// Connect drives the role's assigned peripheral to connected.
func (m *Manager) Connect(ctx context.Context, role bluetooth.Role) error {
	if m.closed.Load() {
		return errorkinds.ErrSessionClosed
	}

	return m.orchestrator.Connect(ctx, role)
}

// Disconnect transitions the role to disconnected, best-effort on the
// platform side.
func (m *Manager) Disconnect(ctx context.Context, role bluetooth.Role) error {
	if m.closed.Load() {
		return errorkinds.ErrSessionClosed
	}

	return m.orchestrator.Disconnect(ctx, role)
}

// AutoConnectAll attempts connection for every assigned role in priority
// order. The first invocation after construction waits out the configured
// startup delay so the platform radio stack can finish initializing.
func (m *Manager) AutoConnectAll(ctx context.Context) error {
	if m.closed.Load() {
		return errorkinds.ErrSessionClosed
	}

	if wait := m.cfg.StartupDelay - time.Since(m.created); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return m.orchestrator.AutoConnectAll(ctx)
}

// Connections returns the latest connection snapshot.
func (m *Manager) Connections() bluetooth.ConnectionSnapshot {
	return m.states.Current()
}

// OnChange registers a snapshot listener.
func (m *Manager) OnChange(listener func(bluetooth.ConnectionSnapshot)) bluetooth.ListenerToken {
	return m.states.OnChange(listener)
}

// RemoveListener removes a snapshot listener.
func (m *Manager) RemoveListener(token bluetooth.ListenerToken) {
	m.states.RemoveListener(token)
}

// On subscribes to a named event channel.
func (m *Manager) On(event string) (eventbus.SubscriberID, error) {
	id, err := bluetooth.EventByName(event)
	if err != nil {
		return eventbus.SubscriberID{}, fault.Wrap(err,
			ftag.With(ftag.InvalidArgument),
			fmsg.With("cannot subscribe to "+event),
		)
	}

	return eventbus.Subscribe(id), nil
}

// Off detaches a subscriber obtained from On.
func (m *Manager) Off(sub eventbus.SubscriberID) {
	sub.Unsubscribe()
}

// Close stops scanning, disconnects all roles and shuts down snapshot
// delivery. The manager is unusable afterwards.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return errorkinds.ErrSessionClosed
	}

	m.scanner.StopScan()
	m.orchestrator.DisconnectAll(context.Background())
	m.states.Close()

	return nil
}
