package core

import (
	"sync"
	"testing"

	"github.com/pawlink/ble-core/api/bluetooth"
	"gotest.tools/assert"
)

func TestSnapshotInvariant(t *testing.T) {
	s := newStateStore()
	defer s.Close()

	statuses := []bluetooth.ConnectionStatus{
		bluetooth.Connecting(),
		bluetooth.Connected(),
		bluetooth.Disconnected(),
		bluetooth.Connecting(),
		bluetooth.Connected(),
	}

	for _, status := range statuses {
		s.Transition(bluetooth.RoleDog, dogPeripheral, status)

		snapshot := s.Current()
		for _, role := range bluetooth.Roles() {
			expected := snapshot.Statuses[role].State == bluetooth.StateConnected
			assert.Equal(t, snapshot.Connected[role], expected)
		}
	}
}

func TestTransitionDeliversOneSnapshotPerChange(t *testing.T) {
	s := newStateStore()
	defer s.Close()

	var mu sync.Mutex
	var delivered []bluetooth.ConnectionSnapshot
	token := s.OnChange(func(snapshot bluetooth.ConnectionSnapshot) {
		mu.Lock()
		delivered = append(delivered, snapshot)
		mu.Unlock()
	})
	defer s.RemoveListener(token)

	assert.Assert(t, s.Transition(bluetooth.RoleDog, dogPeripheral, bluetooth.Connecting()))
	assert.Assert(t, s.Transition(bluetooth.RoleDog, dogPeripheral, bluetooth.Connected()))

	// An unchanged status is not a transition and produces no snapshot.
	assert.Assert(t, !s.Transition(bluetooth.RoleDog, dogPeripheral, bluetooth.Connected()))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, delivered[0].Statuses[bluetooth.RoleDog].State, bluetooth.StateConnecting)
	assert.Equal(t, delivered[1].Statuses[bluetooth.RoleDog].State, bluetooth.StateConnected)
}

// seqReason tags a failed status with the sequence number of the
// transition that produced it.
type seqReason int

func (s seqReason) Error() string { return "sequence" }

func TestConcurrentTransitionsDeliverInOrder(t *testing.T) {
	s := newStateStore()
	defer s.Close()

	roles := []bluetooth.Role{bluetooth.RoleDog, bluetooth.RoleHuman}

	var mu sync.Mutex
	delivered := 0
	violations := 0
	last := make(map[bluetooth.Role]int)
	token := s.OnChange(func(snapshot bluetooth.ConnectionSnapshot) {
		mu.Lock()
		for _, role := range roles {
			seq, ok := snapshot.Statuses[role].Reason.(seqReason)
			if !ok {
				continue
			}
			if int(seq) < last[role] {
				violations++
			}
			last[role] = int(seq)
		}
		delivered++
		mu.Unlock()
	})
	defer s.RemoveListener(token)

	const transitions = 500

	var wg sync.WaitGroup
	for _, role := range roles {
		wg.Add(1)
		go func(role bluetooth.Role) {
			defer wg.Done()
			for i := 1; i <= transitions; i++ {
				s.Transition(role, dogPeripheral, bluetooth.Failed(seqReason(i)))
			}
		}(role)
	}
	wg.Wait()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == len(roles)*transitions
	})

	// A listener must never see a role's state move backwards.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, violations, 0)
}

func TestSnapshotsAreIsolatedCopies(t *testing.T) {
	s := newStateStore()
	defer s.Close()

	before := s.Current()
	s.Transition(bluetooth.RoleVest, vestPeripheral, bluetooth.Connected())

	// The earlier snapshot must not observe the later transition.
	assert.Equal(t, before.Statuses[bluetooth.RoleVest].State, bluetooth.StateDisconnected)
	assert.Equal(t, before.Connected[bluetooth.RoleVest], false)
	assert.Equal(t, s.Current().Connected[bluetooth.RoleVest], true)
}

func TestRemoveListenerStopsDelivery(t *testing.T) {
	s := newStateStore()
	defer s.Close()

	var mu sync.Mutex
	count := 0
	token := s.OnChange(func(bluetooth.ConnectionSnapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	s.Transition(bluetooth.RoleDog, dogPeripheral, bluetooth.Connecting())
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	s.RemoveListener(token)
	s.Transition(bluetooth.RoleDog, dogPeripheral, bluetooth.Connected())

	// Delivery for the second transition would have arrived by now.
	s.Transition(bluetooth.RoleDog, dogPeripheral, bluetooth.Disconnected())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, count, 1)
}
