package orvibo

import (
	"context"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
	"github.com/rhx/orvibo-udp-hap/internal/history"
)

// EventKind classifies what the bridge did.
type EventKind int

const (
	// EventStatus is a status transition.
	EventStatus EventKind = iota
	// EventProbe is an outbound probe line.
	EventProbe
	// EventQuery is an outbound liveness query line.
	EventQuery
)

// Probe reasons carried in Event.Source for EventProbe.
const (
	ProbeStartup   = "startup"
	ProbeRecovery  = "recovery"
	ProbeAccessory = "accessory"
)

// Event is emitted by the bridge loop to its observers.
type Event struct {
	Kind     EventKind
	BridgeID string
	Status   accessory.Status
	// Source is a history.Source* value for EventStatus and a Probe*
	// reason for EventProbe.
	Source string
	Peer   string
	At     time.Time
}

// Observer receives bridge events on the bridge's notifier goroutine.
// Observe may block briefly; it never runs on the protocol loop.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f(ctx, ev).
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// HistoryObserver records status transitions in repo.
func HistoryObserver(repo history.Repository, logger Logger) Observer {
	return ObserverFunc(func(ctx context.Context, ev Event) {
		if ev.Kind != EventStatus {
			return
		}
		err := repo.Record(ctx, history.Entry{
			BridgeID:  ev.BridgeID,
			Status:    ev.Status,
			Source:    ev.Source,
			Peer:      ev.Peer,
			CreatedAt: ev.At,
		})
		if err != nil && logger != nil {
			logger.Error("failed to record status history", "error", err)
		}
	})
}

// Telemetry writes time-series points. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteStatusChange(bridgeID, status, source string)
	WriteProbe(bridgeID, kind string)
}

// TelemetryObserver forwards status transitions and probes to t.
func TelemetryObserver(t Telemetry) Observer {
	return ObserverFunc(func(_ context.Context, ev Event) {
		switch ev.Kind {
		case EventStatus:
			t.WriteStatusChange(ev.BridgeID, ev.Status.String(), ev.Source)
		case EventProbe:
			kind := "probe"
			if ev.Source == ProbeRecovery {
				kind = "recovery"
			}
			t.WriteProbe(ev.BridgeID, kind)
		case EventQuery:
			t.WriteProbe(ev.BridgeID, "query")
		}
	})
}
