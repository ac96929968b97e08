// Package sim provides an in-memory Radio implementation. It stands in
// for the platform radio stack in tests and examples: peripherals are
// advertised by hand, connect outcomes and latencies are programmable, and
// link loss can be injected.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/errorkinds"
)

// Radio is a simulated platform radio.
type Radio struct {
	mu sync.Mutex

	scanErr  error
	scanning bool
	found    func(bluetooth.PeripheralIdentity)

	connectErr   map[bluetooth.PeripheralID]error
	connectDelay time.Duration
	connectGate  chan struct{}

	connectCalls []bluetooth.PeripheralID
	connectTimes []time.Time

	links map[bluetooth.PeripheralID]*link
}

// NewRadio returns an idle simulated radio.
func NewRadio() *Radio {
	return &Radio{
		connectErr: make(map[bluetooth.PeripheralID]error),
		links:      make(map[bluetooth.PeripheralID]*link),
	}
}

// SetScanError makes subsequent Scan calls fail with err.
func (r *Radio) SetScanError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scanErr = err
}

// SetConnectError makes connect attempts for the peripheral fail with err.
func (r *Radio) SetConnectError(id bluetooth.PeripheralID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connectErr[id] = err
}

// SetConnectDelay delays every connect attempt by d.
func (r *Radio) SetConnectDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connectDelay = d
}

// HoldConnections blocks connect attempts until ReleaseConnections.
func (r *Radio) HoldConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connectGate = make(chan struct{})
}

// ReleaseConnections unblocks attempts held by HoldConnections.
func (r *Radio) ReleaseConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connectGate != nil {
		close(r.connectGate)
		r.connectGate = nil
	}
}

// Advertise reports peripherals to the active scan callback, as the
// platform would on receiving advertisements. A no-op when no scan is
// active.
func (r *Radio) Advertise(peripherals ...bluetooth.PeripheralIdentity) {
	r.mu.Lock()
	found := r.found
	scanning := r.scanning
	r.mu.Unlock()

	if !scanning || found == nil {
		return
	}

	for _, p := range peripherals {
		found(p)
	}
}

// ConnectCalls returns the peripherals connect was invoked for, in order.
func (r *Radio) ConnectCalls() []bluetooth.PeripheralID {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]bluetooth.PeripheralID, len(r.connectCalls))
	copy(calls, r.connectCalls)

	return calls
}

// ConnectTimes returns the instants connect attempts were issued at.
func (r *Radio) ConnectTimes() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	times := make([]time.Time, len(r.connectTimes))
	copy(times, r.connectTimes)

	return times
}

// DropLink simulates unexpected link loss for the peripheral.
func (r *Radio) DropLink(id bluetooth.PeripheralID) {
	r.mu.Lock()
	l := r.links[id]
	delete(r.links, id)
	r.mu.Unlock()

	if l != nil {
		l.drop()
	}
}

// Scan implements bluetooth.Radio.
func (r *Radio) Scan(ctx context.Context, found func(bluetooth.PeripheralIdentity)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scanErr != nil {
		return nil, r.scanErr
	}

	r.scanning = true
	r.found = found

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.scanning = false
		r.found = nil
	}, nil
}

// Connect implements bluetooth.Radio.
func (r *Radio) Connect(ctx context.Context, peripheral bluetooth.PeripheralIdentity) (bluetooth.Link, error) {
	r.mu.Lock()
	r.connectCalls = append(r.connectCalls, peripheral.ID)
	r.connectTimes = append(r.connectTimes, time.Now())
	gate := r.connectGate
	delay := r.connectDelay
	failure := r.connectErr[peripheral.ID]
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failure != nil {
		return nil, failure
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := &link{identity: peripheral, lost: make(chan struct{})}

	r.mu.Lock()
	r.links[peripheral.ID] = l
	r.mu.Unlock()

	return l, nil
}

// Disconnect implements bluetooth.Radio.
func (r *Radio) Disconnect(ctx context.Context, peripheral bluetooth.PeripheralIdentity) error {
	r.mu.Lock()
	l := r.links[peripheral.ID]
	delete(r.links, peripheral.ID)
	r.mu.Unlock()

	if l == nil {
		return errorkinds.ErrLinkNotExist
	}

	l.drop()

	return nil
}

type link struct {
	identity bluetooth.PeripheralIdentity
	lost     chan struct{}
	once     sync.Once
}

func (l *link) Identity() bluetooth.PeripheralIdentity {
	return l.identity
}

func (l *link) Disconnected() <-chan struct{} {
	return l.lost
}

func (l *link) drop() {
	l.once.Do(func() {
		close(l.lost)
	})
}
