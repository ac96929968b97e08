package core

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	mapset "github.com/deckarep/golang-set"
	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/errorkinds"
	"github.com/pawlink/ble-core/api/eventbus"
)

// scanner wraps the platform scan primitive and owns the ephemeral scan
// session: the active flag plus the discovered peripherals in first-seen
// order, deduplicated by ID. The session is cleared on stop; a generation
// counter discards discovery callbacks that arrive after the session that
// issued them has ended.
//
// The scanner applies no timeout of its own. Time-boxing a scan is a
// caller concern, layered on top via StopScan after a delay.
type scanner struct {
	radio bluetooth.Radio
	log   *slog.Logger

	mu         sync.Mutex
	active     bool
	generation uint64
	stop       func()
	order      []bluetooth.PeripheralIdentity
	seen       mapset.Set
}

func newScanner(radio bluetooth.Radio, log *slog.Logger) *scanner {
	return &scanner{radio: radio, log: log}
}

// StartScan opens a scan session. Idempotent: a no-op while a scan is
// already active. On platform failure the session is rolled back and the
// error wraps errorkinds.ErrScanUnavailable; the failure is never retried
// automatically.
//
// The session is registered before the platform call: a Radio that reports
// a cached advertisement synchronously from inside Scan feeds the session
// instead of deadlocking on it.
func (s *scanner) StartScan(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}

	s.generation++
	generation := s.generation
	s.active = true
	s.order = nil
	s.seen = mapset.NewSet()
	s.mu.Unlock()

	stop, err := s.radio.Scan(ctx, func(peripheral bluetooth.PeripheralIdentity) {
		s.found(generation, peripheral)
	})

	s.mu.Lock()
	if err != nil {
		if s.generation == generation {
			s.active = false
			s.order = nil
			s.seen = nil
		}
		s.mu.Unlock()

		return fault.Wrap(errorkinds.ErrScanUnavailable,
			ftag.With(ftag.Internal),
			fmsg.With(err.Error()),
		)
	}

	if s.generation != generation || !s.active {
		s.mu.Unlock()

		// Stopped while the platform scan was still starting.
		stop()
		return nil
	}

	s.stop = stop
	s.mu.Unlock()

	return nil
}

// StopScan ends the scan session and clears the discovered list.
// Idempotent; discovery callbacks still in flight are discarded.
func (s *scanner) StopScan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	s.active = false
	s.order = nil
	s.seen = nil

	stop := s.stop
	s.stop = nil

	if stop != nil {
		stop()
	}
}

// Discovered returns the peripherals found by the active session, in
// first-seen order.
func (s *scanner) Discovered() []bluetooth.PeripheralIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()

	discovered := make([]bluetooth.PeripheralIdentity, len(s.order))
	copy(discovered, s.order)

	return discovered
}

func (s *scanner) found(generation uint64, peripheral bluetooth.PeripheralIdentity) {
	s.mu.Lock()

	if !s.active || generation != s.generation || peripheral.IsZero() {
		s.mu.Unlock()
		return
	}
	if s.seen.Contains(peripheral.ID) {
		s.mu.Unlock()
		return
	}

	s.seen.Add(peripheral.ID)
	s.order = append(s.order, peripheral)
	s.mu.Unlock()

	s.log.Debug("peripheral discovered", "id", peripheral.ID, "name", peripheral.Name)
	eventbus.Publish(bluetooth.EventDevice, bluetooth.DeviceFound{Peripheral: peripheral})
}
