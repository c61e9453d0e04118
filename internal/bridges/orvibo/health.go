package orvibo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher is satisfied by *mqtt.Client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthSource is satisfied by *Bridge.
type HealthSource interface {
	Status() accessory.Status
	LastSeen() time.Time
	Stats() Stats
}

// HealthReporterConfig configures a HealthReporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string
	Topic    string

	// Interval between reports. Default: 30 seconds.
	Interval time.Duration

	// StaleAfter marks the device degraded once no status line has
	// arrived for this long. Zero disables the check.
	StaleAfter time.Duration

	Publisher HealthPublisher
	Source    HealthSource
	Logger    Logger
	Clock     Clock
}

// HealthReporter publishes a retained HealthMessage on Topic: "starting"
// on Start, the assessed status every Interval and "stopping" on Stop.
// Each reporter has a fresh instance ID so subscribers can tell a
// restart from a reconnect.
type HealthReporter struct {
	cfg      HealthReporterConfig
	instance string
	started  time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter applies defaults; call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &HealthReporter{
		cfg:      cfg,
		instance: uuid.NewString(),
		started:  cfg.Clock.Now(),
		done:     make(chan struct{}),
	}
}

// Start reports until ctx is done or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.report(HealthStarting, "bridge starting")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ticker := h.cfg.Clock.NewTicker(h.cfg.Interval)
		defer ticker.Stop()

		for {
			h.report(h.assess())
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case <-ticker.C():
			}
		}
	}()
}

// Stop waits for the loop, then publishes "stopping". Idempotent.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.report(HealthStopping, "")
	})
}

// PublishNow publishes the current assessment immediately.
func (h *HealthReporter) PublishNow() error {
	return h.publish(h.assess())
}

// Message builds the health message for status.
func (h *HealthReporter) Message(status HealthStatus, reason string) HealthMessage {
	now := h.cfg.Clock.Now()
	msg := HealthMessage{
		Bridge:        h.cfg.BridgeID,
		Instance:      h.instance,
		Timestamp:     now.UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		DeviceStatus:  accessory.StatusUnknown.String(),
		Reason:        reason,
	}
	if src := h.cfg.Source; src != nil {
		msg.DeviceStatus = src.Status().String()
		if seen := src.LastSeen(); !seen.IsZero() {
			seen = seen.UTC()
			msg.LastSeen = &seen
		}
		stats := src.Stats()
		msg.Statistics = &stats
	}
	return msg
}

// assess checks, in order: the broker link, whether the device status is
// known, and whether the device has been silent longer than StaleAfter.
func (h *HealthReporter) assess() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	src := h.cfg.Source
	if src == nil {
		return HealthHealthy, ""
	}
	if !src.Status().Known() {
		return HealthDegraded, "device status unknown"
	}
	if h.cfg.StaleAfter > 0 {
		if silent := h.cfg.Clock.Now().Sub(src.LastSeen()); silent > h.cfg.StaleAfter {
			return HealthDegraded, fmt.Sprintf("device silent for %s", silent.Truncate(time.Second))
		}
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) report(status HealthStatus, reason string) {
	if err := h.publish(status, reason); err != nil && h.cfg.Logger != nil {
		h.cfg.Logger.Error("failed to publish health", "status", status, "error", err)
	}
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}
	payload, err := json.Marshal(h.Message(status, reason))
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true)
}
