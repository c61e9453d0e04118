package orvibo

import "errors"

// Domain errors for the Orvibo bridge package.
var (
	// ErrAlreadyRunning is returned when Run is called on a running bridge.
	ErrAlreadyRunning = errors.New("orvibo: bridge already running")

	// ErrStopped is returned when Run is called after Stop.
	ErrStopped = errors.New("orvibo: bridge stopped")

	// ErrInvalidCommand is returned when an MQTT command payload names
	// no known status.
	ErrInvalidCommand = errors.New("orvibo: invalid command")

	// ErrMissingOption is returned by NewBridge when a required option is nil.
	ErrMissingOption = errors.New("orvibo: missing option")
)
