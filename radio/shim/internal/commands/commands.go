//go:build !linux

// Package commands defines the command set spoken to the shim helper
// process and the generic execution plumbing around it.
package commands

import (
	"time"

	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/errorkinds"
	"github.com/pawlink/ble-core/radio/shim/internal/serde"
)

// Server commands.
func StartRpcServer(socketPath string) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "rpc start-server"}).WithArgument(SocketArgument, socketPath)
}
func StopRpcServer() *Command[NoResult] {
	return &Command[NoResult]{cmd: "rpc stop-server"}
}

// Discovery commands.
func StartDiscovery() *Command[NoResult] {
	return &Command[NoResult]{cmd: "adapter discovery start"}
}
func StopDiscovery() *Command[NoResult] {
	return &Command[NoResult]{cmd: "adapter discovery stop"}
}

// Device commands.
func ConnectDevice(id bluetooth.PeripheralID) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "device connect"}).WithArgument(AddressArgument, string(id))
}
func DisconnectDevice(id bluetooth.PeripheralID) *Command[NoResult] {
	return (&Command[NoResult]{cmd: "device disconnect"}).WithArgument(AddressArgument, string(id))
}

// ExecuteWith submits the command through fn and waits for its reply.
func (c *Command[T]) ExecuteWith(fn ExecuteFunc, timeout ...time.Duration) (T, error) {
	var result T

	wait := DefaultReplyTimeout
	if timeout != nil {
		wait = timeout[0]
	}

	responseChan, commandErr := fn(c.Slice())
	if commandErr != nil {
		return result, commandErr
	}

	commandErr = errorkinds.ErrSessionClosed

	select {
	case response, ok := <-responseChan:
		if !ok {
			break
		}

		if response.Status == "error" {
			return result, response.Error
		}

		if response.Status == "ok" {
			commandErr = nil

			if _, isNoResult := any(result).(NoResult); isNoResult || len(response.Data) == 0 {
				break
			}

			reply := make(map[string]T, 1)
			if err := serde.UnmarshalJson(response.Data, &reply); err != nil {
				return result, err
			}

			for _, mv := range reply {
				result = mv
			}
		}

	case <-time.After(wait):
		commandErr = errorkinds.ErrMethodTimeout
	}

	return result, commandErr
}
