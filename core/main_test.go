package core

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/config"
	"github.com/pawlink/ble-core/radio/sim"
)

var (
	dogPeripheral   = bluetooth.PeripheralIdentity{ID: "AA:01", Name: "Polar H10"}
	humanPeripheral = bluetooth.PeripheralIdentity{ID: "BB:02", Name: "Wrist Sensor"}
	vestPeripheral  = bluetooth.PeripheralIdentity{ID: "CC:03", Name: "Haptic Vest"}
)

func testConfig() config.Configuration {
	cfg := config.New()
	cfg.StartupDelay = 0
	cfg.InterAttemptDelay = 25 * time.Millisecond
	cfg.ConnectTimeout = 500 * time.Millisecond

	return cfg
}

func newTestManager(t *testing.T, radio *sim.Radio, mutate ...func(*config.Configuration)) *Manager {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	m := New(radio, cfg, WithLogger(quietLogger()))
	t.Cleanup(func() { m.Close() })

	return m
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}

	t.Fatal("condition not reached in time")
}

func waitForState(t *testing.T, m *Manager, role bluetooth.Role, state bluetooth.ConnectionState) {
	t.Helper()

	waitFor(t, func() bool {
		return m.Connections().Statuses[role].State == state
	})
}
