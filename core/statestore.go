package core

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/eventbus"
)

const snapshotQueueCapacity = 64

// stateStore owns the single current connection snapshot. It recomputes
// the snapshot copy-on-write on every orchestrator transition and fans the
// new value out to listeners and the event stream.
//
// Listener delivery runs on one dispatch goroutine fed from an ordered
// queue, so every listener observes a monotonically non-decreasing
// sequence of snapshots and may call back into the manager without
// deadlocking. publishMu serializes snapshot computation with the enqueue
// that follows it; without it two concurrent transitions could land in the
// queue in the reverse of the order their snapshots were computed.
type stateStore struct {
	publishMu sync.Mutex

	mu       sync.RWMutex
	snapshot bluetooth.ConnectionSnapshot

	listenerMu sync.RWMutex
	listeners  map[bluetooth.ListenerToken]func(bluetooth.ConnectionSnapshot)

	queue chan bluetooth.ConnectionSnapshot
	done  chan struct{}
}

func newStateStore() *stateStore {
	s := &stateStore{
		snapshot:  bluetooth.NewConnectionSnapshot(),
		listeners: make(map[bluetooth.ListenerToken]func(bluetooth.ConnectionSnapshot)),
		queue:     make(chan bluetooth.ConnectionSnapshot, snapshotQueueCapacity),
		done:      make(chan struct{}),
	}
	go s.dispatch()

	return s
}

// Current returns the latest snapshot. The value is immutable and safe to
// read from any goroutine.
func (s *stateStore) Current() bluetooth.ConnectionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot
}

// Status returns the latest status for a single role.
func (s *stateStore) Status(role bluetooth.Role) bluetooth.ConnectionStatus {
	return s.Current().Statuses[role]
}

// Transition replaces the role's status and publishes the resulting
// snapshot. It reports whether the status actually changed; an unchanged
// status produces no new snapshot.
func (s *stateStore) Transition(role bluetooth.Role, peripheral bluetooth.PeripheralIdentity, status bluetooth.ConnectionStatus) bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()

	previous := s.snapshot.Statuses[role]
	if previous.State == status.State && previous.Reason == status.Reason {
		s.mu.Unlock()
		return false
	}

	next := s.snapshot.With(role, status)
	s.snapshot = next
	s.mu.Unlock()

	s.publish(role, peripheral, previous, status, next)

	return true
}

// OnChange registers a snapshot listener and returns its removal token.
func (s *stateStore) OnChange(listener func(bluetooth.ConnectionSnapshot)) bluetooth.ListenerToken {
	token := bluetooth.ListenerToken(uuid.NewString())

	s.listenerMu.Lock()
	s.listeners[token] = listener
	s.listenerMu.Unlock()

	return token
}

// RemoveListener removes a previously registered listener.
func (s *stateStore) RemoveListener(token bluetooth.ListenerToken) {
	s.listenerMu.Lock()
	delete(s.listeners, token)
	s.listenerMu.Unlock()
}

// Close stops the dispatch goroutine. Queued snapshots are dropped.
func (s *stateStore) Close() {
	close(s.done)
}

func (s *stateStore) publish(
	role bluetooth.Role,
	peripheral bluetooth.PeripheralIdentity,
	previous, status bluetooth.ConnectionStatus,
	snapshot bluetooth.ConnectionSnapshot,
) {
	connection := bluetooth.RoleConnection{Role: role, Peripheral: peripheral, Status: status}

	if status.State == bluetooth.StateConnected {
		eventbus.Publish(bluetooth.EventConnected, connection)
	}
	if previous.State == bluetooth.StateConnected {
		eventbus.Publish(bluetooth.EventDisconnected, connection)
	}
	eventbus.Publish(bluetooth.EventConnections, snapshot)

	select {
	case s.queue <- snapshot:
	case <-s.done:
	}
}

func (s *stateStore) dispatch() {
	for {
		select {
		case snapshot := <-s.queue:
			s.listenerMu.RLock()
			listeners := make([]func(bluetooth.ConnectionSnapshot), 0, len(s.listeners))
			for _, l := range s.listeners {
				listeners = append(listeners, l)
			}
			s.listenerMu.RUnlock()

			for _, l := range listeners {
				l(snapshot)
			}

		case <-s.done:
			return
		}
	}
}
