package wing

import (
	"github.com/pkg/errors"
)

// Errors reported by sessions and discovery. Transport failures are wrapped
// io errors; everything else maps to one of these sentinels.
var (
	// ErrInvalidData indicates that a decoded byte sequence violated the
	// frame grammar, a length overran its bounded buffer, or a string was
	// not valid UTF-8. The session cannot re-synchronize; the caller should
	// drop it.
	ErrInvalidData = errors.New("invalid data received")

	// ErrConnection indicates that the connection reported ready but
	// delivered no data, or the handshake failed.
	ErrConnection = errors.New("connection error")

	// ErrNoDeviceFound is returned by Connect when no target was supplied
	// and discovery produced no devices.
	ErrNoDeviceFound = errors.New("no device found")
)
