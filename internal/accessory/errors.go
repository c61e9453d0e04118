package accessory

import "errors"

// Domain errors for the accessory package.
var (
	// ErrInvalidStatus is returned when a status string is not recognised.
	ErrInvalidStatus = errors.New("accessory: invalid status")

	// ErrInvalidKind is returned when an accessory kind is not recognised.
	ErrInvalidKind = errors.New("accessory: invalid kind")
)
