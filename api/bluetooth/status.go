package bluetooth

// ConnectionState describes the lifecycle state of a role's connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)

// String converts a ConnectionState to a string.
func (c ConnectionState) String() string {
	return string(c)
}

// ConnectionStatus is the status of a single role. Reason is set only when
// State is StateFailed, and holds a sentinel from the errorkinds package,
// comparable with errors.Is.
type ConnectionStatus struct {
	State  ConnectionState `json:"state"`
	Reason error           `json:"-"`
}

// Disconnected returns a disconnected status.
func Disconnected() ConnectionStatus {
	return ConnectionStatus{State: StateDisconnected}
}

// Connecting returns an in-progress status.
func Connecting() ConnectionStatus {
	return ConnectionStatus{State: StateConnecting}
}

// Connected returns a connected status.
func Connected() ConnectionStatus {
	return ConnectionStatus{State: StateConnected}
}

// Failed returns a failed status carrying the failure reason.
func Failed(reason error) ConnectionStatus {
	return ConnectionStatus{State: StateFailed, Reason: reason}
}

// ConnectionSnapshot is an immutable point-in-time view of all roles'
// connection statuses. A fresh value is published on every transition;
// consumers never receive a live reference into the core's state.
//
// Invariant: Connected[r] == (Statuses[r].State == StateConnected) for all r.
type ConnectionSnapshot struct {
	Connected map[Role]bool             `json:"connected"`
	Statuses  map[Role]ConnectionStatus `json:"statuses"`
}

// NewConnectionSnapshot returns a snapshot with every role disconnected.
func NewConnectionSnapshot() ConnectionSnapshot {
	s := ConnectionSnapshot{
		Connected: make(map[Role]bool, len(Roles())),
		Statuses:  make(map[Role]ConnectionStatus, len(Roles())),
	}
	for _, role := range Roles() {
		s.Connected[role] = false
		s.Statuses[role] = Disconnected()
	}

	return s
}

// With returns a copy of the snapshot with the given role's status replaced.
// The receiver is left untouched.
func (s ConnectionSnapshot) With(role Role, status ConnectionStatus) ConnectionSnapshot {
	next := ConnectionSnapshot{
		Connected: make(map[Role]bool, len(s.Connected)),
		Statuses:  make(map[Role]ConnectionStatus, len(s.Statuses)),
	}
	for r, v := range s.Connected {
		next.Connected[r] = v
	}
	for r, v := range s.Statuses {
		next.Statuses[r] = v
	}

	next.Statuses[role] = status
	next.Connected[role] = status.State == StateConnected

	return next
}
