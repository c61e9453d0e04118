package udp

import (
	"errors"
	"fmt"
	"syscall"
)

// Domain errors for the udp package.
var (
	// ErrInvalidAddress is returned when a bind address cannot be parsed
	// as a numeric IP address.
	ErrInvalidAddress = errors.New("udp: invalid bind address")

	// ErrSocket is returned when creating, configuring or binding the
	// underlying socket fails.
	ErrSocket = errors.New("udp: socket operation failed")
)

// AddressError reports a bind address that could not be used.
type AddressError struct {
	Address string
	Err     error
}

func (e *AddressError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("udp: invalid bind address %q", e.Address)
	}
	return fmt.Sprintf("udp: invalid bind address %q: %v", e.Address, e.Err)
}

// Unwrap exposes both ErrInvalidAddress and the parse failure to errors.Is.
func (e *AddressError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidAddress}
	}
	return []error{ErrInvalidAddress, e.Err}
}

// SocketError reports a failed socket system call.
// Op names the call ("socket", "setsockopt SO_BROADCAST", "bind", ...).
type SocketError struct {
	Op  string
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("udp: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrSocket and the underlying cause to errors.Is.
func (e *SocketError) Unwrap() []error {
	return []error{ErrSocket, e.Err}
}

// Errno returns the operating-system error number behind the failure,
// or 0 if the cause was not a system call error.
func (e *SocketError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}
