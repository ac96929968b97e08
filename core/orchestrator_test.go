package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/config"
	"github.com/pawlink/ble-core/api/errorkinds"
	"github.com/pawlink/ble-core/radio/sim"
	"gotest.tools/assert"
)

func TestConnectNotAssigned(t *testing.T) {
	radio := sim.NewRadio()
	m := newTestManager(t, radio)

	err := m.Connect(context.Background(), bluetooth.RoleDog)
	assert.Assert(t, errors.Is(err, errorkinds.ErrNotAssigned))
	assert.Equal(t, len(radio.ConnectCalls()), 0)

	status := m.Connections().Statuses[bluetooth.RoleDog]
	assert.Equal(t, status.State, bluetooth.StateFailed)
	assert.Assert(t, errors.Is(status.Reason, errorkinds.ErrNotAssigned))
}

func TestConnectDuplicateSuppression(t *testing.T) {
	radio := sim.NewRadio()
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	radio.HoldConnections()

	go m.Connect(context.Background(), bluetooth.RoleDog)
	waitForState(t, m, bluetooth.RoleDog, bluetooth.StateConnecting)

	// A second request while the first is still in flight is a no-op.
	assert.NilError(t, m.Connect(context.Background(), bluetooth.RoleDog))

	radio.ReleaseConnections()
	waitForState(t, m, bluetooth.RoleDog, bluetooth.StateConnected)

	assert.Equal(t, len(radio.ConnectCalls()), 1)

	// Connecting an already connected role is also a no-op.
	assert.NilError(t, m.Connect(context.Background(), bluetooth.RoleDog))
	assert.Equal(t, len(radio.ConnectCalls()), 1)
}

func TestConnectSuccessSnapshot(t *testing.T) {
	radio := sim.NewRadio()
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	assert.NilError(t, m.Connect(context.Background(), bluetooth.RoleDog))

	snapshot := m.Connections()
	assert.Equal(t, snapshot.Statuses[bluetooth.RoleDog].State, bluetooth.StateConnected)
	assert.Equal(t, snapshot.Connected[bluetooth.RoleDog], true)
}

func TestConnectFailureUnreachable(t *testing.T) {
	radio := sim.NewRadio()
	radio.SetConnectError(dogPeripheral.ID, errors.New("no response"))
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	err := m.Connect(context.Background(), bluetooth.RoleDog)
	assert.Assert(t, err != nil)

	status := m.Connections().Statuses[bluetooth.RoleDog]
	assert.Equal(t, status.State, bluetooth.StateFailed)
	assert.Assert(t, errors.Is(status.Reason, errorkinds.ErrPeripheralUnreachable))
	assert.Equal(t, m.Connections().Connected[bluetooth.RoleDog], false)
}

func TestConnectTimeout(t *testing.T) {
	radio := sim.NewRadio()
	radio.SetConnectDelay(200 * time.Millisecond)
	m := newTestManager(t, radio, func(cfg *config.Configuration) {
		cfg.ConnectTimeout = 20 * time.Millisecond
	})
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	err := m.Connect(context.Background(), bluetooth.RoleDog)
	assert.Assert(t, err != nil)

	status := m.Connections().Statuses[bluetooth.RoleDog]
	assert.Equal(t, status.State, bluetooth.StateFailed)
	assert.Assert(t, errors.Is(status.Reason, errorkinds.ErrMethodTimeout))
}

func TestFailedRoleRetriesOnConnect(t *testing.T) {
	radio := sim.NewRadio()
	radio.SetConnectError(dogPeripheral.ID, errors.New("no response"))
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	assert.Assert(t, m.Connect(context.Background(), bluetooth.RoleDog) != nil)

	radio.SetConnectError(dogPeripheral.ID, nil)
	assert.NilError(t, m.Connect(context.Background(), bluetooth.RoleDog))
	assert.Equal(t, m.Connections().Statuses[bluetooth.RoleDog].State, bluetooth.StateConnected)
	assert.Equal(t, len(radio.ConnectCalls()), 2)
}

func TestDisconnectDuringFailingConnectWins(t *testing.T) {
	radio := sim.NewRadio()
	radio.HoldConnections()
	radio.SetConnectError(dogPeripheral.ID, errors.New("no response"))
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background(), bluetooth.RoleDog) }()
	waitForState(t, m, bluetooth.RoleDog, bluetooth.StateConnecting)

	assert.NilError(t, m.Disconnect(context.Background(), bluetooth.RoleDog))
	waitForState(t, m, bluetooth.RoleDog, bluetooth.StateDisconnected)

	radio.ReleaseConnections()
	assert.NilError(t, <-done)

	// The late failure must not clobber the requested disconnect.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, m.Connections().Statuses[bluetooth.RoleDog].State, bluetooth.StateDisconnected)
}

func TestConnectUnassignedKeepsConnectedRole(t *testing.T) {
	radio := sim.NewRadio()
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	assert.NilError(t, m.Connect(context.Background(), bluetooth.RoleDog))
	m.UnassignRole(bluetooth.RoleDog)

	err := m.Connect(context.Background(), bluetooth.RoleDog)
	assert.Assert(t, errors.Is(err, errorkinds.ErrNotAssigned))
	assert.Equal(t, m.Connections().Statuses[bluetooth.RoleDog].State, bluetooth.StateConnected)

	// The link and its watcher stay armed; loss is still observed.
	radio.DropLink(dogPeripheral.ID)
	waitForState(t, m, bluetooth.RoleDog, bluetooth.StateDisconnected)
}

func TestDisconnectBestEffort(t *testing.T) {
	radio := sim.NewRadio()
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	assert.NilError(t, m.Connect(context.Background(), bluetooth.RoleDog))
	assert.NilError(t, m.Disconnect(context.Background(), bluetooth.RoleDog))
	assert.Equal(t, m.Connections().Statuses[bluetooth.RoleDog].State, bluetooth.StateDisconnected)

	// Disconnecting a role that never connected still lands on
	// disconnected and reports no error.
	assert.NilError(t, m.Disconnect(context.Background(), bluetooth.RoleHuman))
	assert.Equal(t, m.Connections().Statuses[bluetooth.RoleHuman].State, bluetooth.StateDisconnected)
}

func TestUnexpectedLinkLoss(t *testing.T) {
	radio := sim.NewRadio()
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	assert.NilError(t, m.Connect(context.Background(), bluetooth.RoleDog))

	snapshot := m.Connections()
	assert.Equal(t, snapshot.Statuses[bluetooth.RoleDog].State, bluetooth.StateConnected)
	assert.Equal(t, snapshot.Connected[bluetooth.RoleDog], true)

	radio.DropLink(dogPeripheral.ID)
	waitForState(t, m, bluetooth.RoleDog, bluetooth.StateDisconnected)

	snapshot = m.Connections()
	assert.Equal(t, snapshot.Connected[bluetooth.RoleDog], false)

	// No automatic reconnect is ever issued.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, len(radio.ConnectCalls()), 1)
}

func TestRequestedDisconnectDoesNotDoubleTransition(t *testing.T) {
	radio := sim.NewRadio()
	m := newTestManager(t, radio)
	m.AssignRole(dogPeripheral, bluetooth.RoleDog)

	var transitions atomic.Int32
	token := m.OnChange(func(bluetooth.ConnectionSnapshot) { transitions.Add(1) })
	defer m.RemoveListener(token)

	assert.NilError(t, m.Connect(context.Background(), bluetooth.RoleDog))
	assert.NilError(t, m.Disconnect(context.Background(), bluetooth.RoleDog))

	// Connecting, connected, disconnected: the watcher observing the
	// requested teardown must not add a fourth.
	waitFor(t, func() bool { return transitions.Load() == 3 })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, transitions.Load(), int32(3))
}
