package bluetooth

import "context"

// Radio is the platform discovery/connect primitive the connection core is
// built on. Implementations live under radio/; the core treats this as an
// injectable dependency so tests can substitute a simulator.
//
// A Radio has no optional members. Whether a capability is available on the
// running platform is decided at adapter construction time, never at call
// time.
type Radio interface {
	// Scan starts platform discovery and invokes found for every
	// advertisement until the returned stop function is called or ctx is
	// cancelled. The callback may be invoked from any goroutine.
	Scan(ctx context.Context, found func(PeripheralIdentity)) (stop func(), err error)

	// Connect establishes a link to the peripheral. It blocks until the
	// platform responds or ctx expires. Connect attempts are not abortable
	// mid-flight on most platforms; callers who no longer want the link
	// disconnect once the attempt resolves.
	Connect(ctx context.Context, peripheral PeripheralIdentity) (Link, error)

	// Disconnect tears down the link to the peripheral, if any.
	Disconnect(ctx context.Context, peripheral PeripheralIdentity) error
}

// Link is an established connection to a peripheral.
type Link interface {
	// Identity returns the peripheral this link is bound to.
	Identity() PeripheralIdentity

	// Disconnected returns a channel that is closed when the platform
	// reports the link as lost, whether or not the loss was requested.
	Disconnected() <-chan struct{}
}
