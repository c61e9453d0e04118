package accessory

import (
	"fmt"
	"strings"
)

// Status is the last known power state of the device.
type Status int

const (
	// StatusUnknown means no status line has confirmed the device state.
	StatusUnknown Status = iota
	// StatusOff means the device reported or was told to be off.
	StatusOff
	// StatusOn means the device reported or was told to be on.
	StatusOn
)

// String returns "on", "off" or "unknown".
func (s Status) String() string {
	switch s {
	case StatusOn:
		return "on"
	case StatusOff:
		return "off"
	default:
		return "unknown"
	}
}

// Known reports whether s is On or Off.
func (s Status) Known() bool {
	return s == StatusOn || s == StatusOff
}

// FromBool maps true to On and false to Off.
func FromBool(on bool) Status {
	if on {
		return StatusOn
	}
	return StatusOff
}

// ParseStatus accepts on/off/unknown plus the usual boolean spellings,
// case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return StatusOn, nil
	case "off", "false", "0":
		return StatusOff, nil
	case "unknown", "":
		return StatusUnknown, nil
	default:
		return StatusUnknown, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
