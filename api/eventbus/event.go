package eventbus

// EventID describes a named event channel on the event stream.
type EventID interface {
	// Value returns the numeric value of the event.
	Value() uint

	// String returns the event channel name.
	String() string
}

// SubscriberID represents a subscription to an event channel.
type SubscriberID struct {
	// C receives event payloads for the subscribed channel.
	C chan any

	active bool
	unsub  func()
}

// Active reports whether the subscription delivers events.
func (s *SubscriberID) Active() bool {
	return s.active
}

// Unsubscribe detaches the subscription from the event stream.
// Safe to call more than once.
func (s *SubscriberID) Unsubscribe() {
	if !s.active {
		return
	}

	s.active = false
	if s.unsub != nil {
		s.unsub()
	}
}
