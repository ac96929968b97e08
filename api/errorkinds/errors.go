// Package errorkinds defines the sentinel errors surfaced by the
// connection core. Callers compare with errors.Is; boundary layers may
// wrap these with additional context.
package errorkinds

import "errors"

var (
	// ErrScanUnavailable indicates the platform scan primitive is
	// unavailable or denied (adapter off, permission not granted).
	// Never retried automatically.
	ErrScanUnavailable = errors.New("scanning is unavailable on this platform")

	// ErrNotAssigned indicates a connect was requested for a role with no
	// assigned peripheral. Returned synchronously, before any platform call.
	ErrNotAssigned = errors.New("no peripheral is assigned to this role")

	// ErrPeripheralUnreachable indicates the assigned peripheral did not
	// respond to the connection attempt.
	ErrPeripheralUnreachable = errors.New("the peripheral is unreachable")

	// ErrPlatformRejected indicates the platform radio stack refused the
	// operation.
	ErrPlatformRejected = errors.New("the platform rejected the operation")

	// ErrMethodTimeout indicates an operation did not complete within its
	// deadline.
	ErrMethodTimeout = errors.New("the operation timed out")

	// ErrSessionClosed indicates the manager or radio has been closed.
	ErrSessionClosed = errors.New("the session is closed")

	// ErrLinkNotExist indicates no link exists for the peripheral.
	ErrLinkNotExist = errors.New("no link exists for this peripheral")

	// ErrUnknownRole indicates an unrecognized role name.
	ErrUnknownRole = errors.New("unknown role")

	// ErrUnknownEvent indicates an unrecognized event channel name.
	ErrUnknownEvent = errors.New("unknown event channel")
)
