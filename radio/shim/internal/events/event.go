//go:build !linux

// Package events decodes unsolicited server events from the shim.
package events

import (
	"github.com/pawlink/ble-core/radio/shim/internal/serde"
	"github.com/ugorji/go/codec"
)

// Event IDs carried in the reply header's low nibble.
const (
	EventNone        byte = 0
	EventDeviceFound byte = 1
	EventLinkLost    byte = 2
)

// ServerEvent is the envelope of an unsolicited shim event.
type ServerEvent struct {
	EventId byte      `json:"event_id,omitempty"`
	Event   codec.Raw `json:"event"`
}

// DeviceFound reports a peripheral seen during discovery.
type DeviceFound struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// LinkLost reports a dropped link.
type LinkLost struct {
	Address string `json:"address"`
}

// Unmarshal decodes a server event envelope.
func Unmarshal(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	err := serde.UnmarshalJson(data, &ev)

	return ev, err
}

// UnmarshalPayload decodes the inner event payload.
func UnmarshalPayload[T any](ev ServerEvent) (T, error) {
	var payload T
	err := serde.UnmarshalJson(ev.Event, &payload)

	return payload, err
}
