package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/config"
	"github.com/pawlink/ble-core/api/errorkinds"
)

// orchestrator drives the per-role connection state machine:
//
//	Disconnected -> Connecting -> {Connected | Failed}
//	Connected    -> Disconnected  (requested disconnect or link loss)
//	Failed       -> Connecting    (manual retry)
//
// Transitions are issued exclusively here; no other component mutates
// connection status. The orchestrator never retries on its own: retry
// after failure or unexpected link loss is a policy decision left to the
// caller.
type orchestrator struct {
	radio    bluetooth.Radio
	registry *roleRegistry
	states   *stateStore
	cfg      config.Configuration
	log      *slog.Logger

	mu    sync.Mutex
	links map[bluetooth.Role]bluetooth.Link
	epoch map[bluetooth.Role]uint64
}

func newOrchestrator(radio bluetooth.Radio, registry *roleRegistry, states *stateStore, cfg config.Configuration, log *slog.Logger) *orchestrator {
	return &orchestrator{
		radio:    radio,
		registry: registry,
		states:   states,
		cfg:      cfg,
		log:      log,
		links:    make(map[bluetooth.Role]bluetooth.Link),
		epoch:    make(map[bluetooth.Role]uint64),
	}
}

// Connect attempts to connect the peripheral assigned to the role.
//
// A request for a role that is already connecting or connected is a silent
// no-op: duplicate-attempt suppression guarantees at most one in-flight
// platform connect per role, even when the UI and the startup policy race
// on the same role. A role with no assignment transitions to failed with
// ErrNotAssigned before any platform call.
func (o *orchestrator) Connect(ctx context.Context, role bluetooth.Role) error {
	o.mu.Lock()

	assignment, ok := o.registry.Get(role)
	if !ok {
		// A live link on an unassigned role belongs to Disconnect; clobbering
		// it to failed would silence the watcher while the link stays up.
		if o.states.Status(role).State == bluetooth.StateConnected {
			o.mu.Unlock()
			return fault.Wrap(errorkinds.ErrNotAssigned,
				ftag.With(ftag.InvalidArgument),
				fmsg.With("cannot connect role "+role.String()),
			)
		}

		o.epoch[role]++
		o.mu.Unlock()

		o.states.Transition(role, bluetooth.PeripheralIdentity{}, bluetooth.Failed(errorkinds.ErrNotAssigned))
		return fault.Wrap(errorkinds.ErrNotAssigned,
			ftag.With(ftag.InvalidArgument),
			fmsg.With("cannot connect role "+role.String()),
		)
	}

	switch o.states.Status(role).State {
	case bluetooth.StateConnecting, bluetooth.StateConnected:
		o.mu.Unlock()
		return nil
	}

	o.epoch[role]++
	epoch := o.epoch[role]

	o.states.Transition(role, assignment.Peripheral, bluetooth.Connecting())
	o.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, o.cfg.ConnectTimeout)
	defer cancel()

	link, err := o.radio.Connect(connectCtx, assignment.Peripheral)
	if err != nil {
		o.mu.Lock()
		stale := o.epoch[role] != epoch
		o.mu.Unlock()

		if stale {
			// Superseded by a disconnect or unassign while connecting; the
			// role is already where the caller put it.
			return nil
		}

		reason := classifyConnectError(connectCtx, err)
		o.log.Warn("connect attempt failed",
			"role", role.String(), "peripheral", assignment.Peripheral.ID, "err", err)

		o.states.Transition(role, assignment.Peripheral, bluetooth.Failed(reason))
		return fault.Wrap(err,
			ftag.With(ftag.Internal),
			fmsg.With("connect failed for role "+role.String()),
		)
	}

	o.mu.Lock()
	stale := o.epoch[role] != epoch
	if !stale {
		o.links[role] = link
	}
	o.mu.Unlock()

	if stale {
		// Superseded by a disconnect or unassign while connecting.
		if err := o.radio.Disconnect(context.WithoutCancel(ctx), link.Identity()); err != nil {
			o.log.Warn("stale link teardown failed", "peripheral", link.Identity().ID, "err", err)
		}
		return nil
	}

	o.states.Transition(role, assignment.Peripheral, bluetooth.Connected())
	o.log.Info("role connected", "role", role.String(), "peripheral", assignment.Peripheral.ID)

	go o.watchLink(role, epoch, link)

	return nil
}

// Disconnect is best-effort: the role always transitions to disconnected
// in the local state machine, because the user-visible contract is "stop
// treating this role as connected", not "the radio link is provably
// closed". Platform disconnect errors are logged, never surfaced.
func (o *orchestrator) Disconnect(ctx context.Context, role bluetooth.Role) error {
	o.mu.Lock()
	o.epoch[role]++
	delete(o.links, role)
	assignment, assigned := o.registry.Get(role)
	o.mu.Unlock()

	o.states.Transition(role, assignment.Peripheral, bluetooth.Disconnected())

	if assigned {
		if err := o.radio.Disconnect(ctx, assignment.Peripheral); err != nil && !errors.Is(err, errorkinds.ErrLinkNotExist) {
			o.log.Warn("platform disconnect failed",
				"role", role.String(), "peripheral", assignment.Peripheral.ID, "err", err)
		}
	}

	return nil
}

// AutoConnectAll sequentially attempts Connect for every assigned role, in
// fixed priority order. A cooldown separates consecutive attempts: the
// latency trade is deliberate backpressure, since parallel connects are
// what the platform radio stack tolerates worst. Roles already connected
// are skipped without consuming the cooldown. With nothing assigned it
// completes immediately with zero platform calls.
func (o *orchestrator) AutoConnectAll(ctx context.Context) error {
	attempted := false

	for _, role := range bluetooth.Roles() {
		if _, ok := o.registry.Get(role); !ok {
			continue
		}
		if o.states.Status(role).State == bluetooth.StateConnected {
			continue
		}

		if attempted {
			select {
			case <-time.After(o.cfg.InterAttemptDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		attempted = true

		// Failures land in the snapshot; later roles still get their turn.
		if err := o.Connect(ctx, role); err != nil {
			o.log.Warn("auto-connect attempt failed", "role", role.String(), "err", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}

// DisconnectAll tears down every assigned role, used on manager close.
func (o *orchestrator) DisconnectAll(ctx context.Context) {
	for _, role := range bluetooth.Roles() {
		if o.states.Status(role).State == bluetooth.StateConnected {
			_ = o.Disconnect(ctx, role)
		}
	}
}

// watchLink waits for the platform to report link loss. A requested
// disconnect bumps the role's epoch first, so the watcher only acts on
// unexpected loss: Connected -> Disconnected, one snapshot, no retry.
func (o *orchestrator) watchLink(role bluetooth.Role, epoch uint64, link bluetooth.Link) {
	<-link.Disconnected()

	o.mu.Lock()
	if o.epoch[role] != epoch {
		o.mu.Unlock()
		return
	}
	delete(o.links, role)
	o.mu.Unlock()

	o.log.Info("link lost", "role", role.String(), "peripheral", link.Identity().ID)
	o.states.Transition(role, link.Identity(), bluetooth.Disconnected())
}

func classifyConnectError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return errorkinds.ErrMethodTimeout
	case errors.Is(err, errorkinds.ErrPlatformRejected):
		return errorkinds.ErrPlatformRejected
	default:
		return errorkinds.ErrPeripheralUnreachable
	}
}
