//go:build !linux

package commands

import "encoding/binary"

// RawReplyHeaderSize is the fixed size of every reply header on the shim
// socket: version (1) + info (1) + request id (8) + operation id (4) +
// content size (4).
const RawReplyHeaderSize = 18

type RawReplyHeaderBuffer = [RawReplyHeaderSize]byte

// RawReplyHeader is the wire layout of a reply header, big-endian.
type RawReplyHeader struct {
	ApiVersion  byte
	InfoHeader  byte
	RequestId   int64
	OperationId uint32
	ContentSize uint32
}

// UnpackedReplyHeader is a reply header with the InfoHeader bits parsed
// out: the high nibble carries the operation-complete flag, the low nibble
// the event ID (non-zero for unsolicited server events).
type UnpackedReplyHeader struct {
	RawReplyHeader

	IsOperationComplete bool
	EventID             byte
}

// UnpackReplyHeader parses a raw header buffer.
func UnpackReplyHeader(rawheader RawReplyHeaderBuffer) (UnpackedReplyHeader, error) {
	var unpacked UnpackedReplyHeader

	var header RawReplyHeader
	if _, err := binary.Decode(rawheader[:], binary.BigEndian, &header); err != nil {
		return unpacked, err
	}

	unpacked.RawReplyHeader = header

	flags := (header.InfoHeader >> 4) & 0x0f
	unpacked.IsOperationComplete = (flags >> 0) > 0
	unpacked.EventID = (header.InfoHeader) & 0x0f

	return unpacked, nil
}

// PackReplyHeader encodes a header for the wire. The inverse of
// UnpackReplyHeader; used by the shim end of the protocol and by tests.
func PackReplyHeader(header RawReplyHeader, complete bool, eventID byte) (RawReplyHeaderBuffer, error) {
	var buf RawReplyHeaderBuffer

	header.InfoHeader = eventID & 0x0f
	if complete {
		header.InfoHeader |= 1 << 4
	}

	_, err := binary.Encode(buf[:], binary.BigEndian, &header)

	return buf, err
}
