//go:build linux

package platform

import (
	"log/slog"

	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/config"
	"github.com/pawlink/ble-core/radio/bluez"
)

// DefaultRadio returns the platform radio implementation.
func DefaultRadio(cfg config.Configuration, log *slog.Logger) (bluetooth.Radio, PlatformInfo, error) {
	radio, err := bluez.NewRadio(log)

	return radio, NewPlatformInfo(BluezStack), err
}
