package actuator

import "errors"

var (
	// ErrUnknownDriver is returned by Open for an unrecognised driver name.
	ErrUnknownDriver = errors.New("actuator: unknown driver")

	// ErrUnsupported is returned when a driver is not available on this platform.
	ErrUnsupported = errors.New("actuator: driver not supported on this platform")

	// ErrClosed is returned by Set after Close.
	ErrClosed = errors.New("actuator: driver closed")
)
