package horn

import "errors"

// Domain errors for the horn bridge package.
var (
	// ErrNotStarted is returned when an operation needs a started bridge.
	ErrNotStarted = errors.New("horn: bridge not started")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("horn: bridge already started")

	// ErrMissingDependency is returned by NewBridge when a required option is nil.
	ErrMissingDependency = errors.New("horn: missing dependency")
)
