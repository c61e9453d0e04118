package history

import (
	"context"
	"errors"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
)

// Sources of a status transition.
const (
	// SourceWire is a status line received from the device controller.
	SourceWire = "wire"
	// SourceAccessory is a change requested by the automation framework.
	SourceAccessory = "accessory"
	// SourceProbe is the reset to Unknown that accompanies a probe.
	SourceProbe = "probe"
)

var (
	// ErrNotFound is returned when no history exists for a bridge.
	ErrNotFound = errors.New("history: no entries")

	// ErrInvalidEntry is returned when an entry lacks a bridge ID or source.
	ErrInvalidEntry = errors.New("history: invalid entry")
)

// Entry is one recorded status transition.
type Entry struct {
	ID       int64            `json:"id"`
	BridgeID string           `json:"bridge_id"`
	Status   accessory.Status `json:"status"`
	Source   string           `json:"source"`
	// Peer is the sender of the status line, empty for local changes.
	Peer      string    `json:"peer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves status transitions.
//
// Implementations must be safe for concurrent use and store UTC times.
type Repository interface {
	Record(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, bridgeID string, limit int) ([]Entry, error)
	// LastKnown returns the newest on or off entry, skipping probe
	// resets to unknown, or ErrNotFound.
	LastKnown(ctx context.Context, bridgeID string) (Entry, error)
	// Prune deletes entries older than olderThan and returns how many.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
