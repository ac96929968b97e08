//go:build !linux

package commands

import (
	"testing"
	"time"

	"github.com/pawlink/ble-core/api/bluetooth"
	"github.com/pawlink/ble-core/api/errorkinds"
	"gotest.tools/assert"
)

func TestReplyHeaderRoundTrip(t *testing.T) {
	header := RawReplyHeader{
		ApiVersion:  1,
		RequestId:   42,
		OperationId: 7,
		ContentSize: 128,
	}

	buf, err := PackReplyHeader(header, true, 2)
	assert.NilError(t, err)

	unpacked, err := UnpackReplyHeader(buf)
	assert.NilError(t, err)
	assert.Equal(t, unpacked.RequestId, int64(42))
	assert.Equal(t, unpacked.OperationId, uint32(7))
	assert.Equal(t, unpacked.ContentSize, uint32(128))
	assert.Assert(t, unpacked.IsOperationComplete)
	assert.Equal(t, unpacked.EventID, byte(2))
}

func TestCommandSlice(t *testing.T) {
	cmd := ConnectDevice(bluetooth.PeripheralID("AA:01"))

	slice := cmd.Slice()
	assert.DeepEqual(t, slice, []string{"device", "connect", "--address", "AA:01"})
}

func TestExecuteWithOkReply(t *testing.T) {
	fn := func(params []string) (chan Response, error) {
		ch := make(chan Response, 1)
		ch <- Response{Status: "ok"}
		close(ch)

		return ch, nil
	}

	_, err := StartDiscovery().ExecuteWith(fn)
	assert.NilError(t, err)
}

func TestExecuteWithErrorReply(t *testing.T) {
	fn := func(params []string) (chan Response, error) {
		ch := make(chan Response, 1)
		ch <- Response{
			Status: "error",
			Error:  CommandError{Name: "br-connection-failed", Description: "page timeout"},
		}
		close(ch)

		return ch, nil
	}

	_, err := ConnectDevice(bluetooth.PeripheralID("AA:01")).ExecuteWith(fn)
	assert.ErrorContains(t, err, "br-connection-failed")
}

func TestExecuteWithTimeout(t *testing.T) {
	fn := func(params []string) (chan Response, error) {
		return make(chan Response), nil
	}

	_, err := StopDiscovery().ExecuteWith(fn, 10*time.Millisecond)
	assert.Assert(t, err == errorkinds.ErrMethodTimeout)
}
