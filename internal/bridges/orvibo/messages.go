package orvibo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
)

// MQTT message types exchanged with the automation framework.

// StateMessage is published when the status changes.
// Topic: {prefix}/state/{bridge_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// BridgeID identifies the bridge.
	BridgeID string `json:"bridge_id"`

	// Timestamp is when the status was observed (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Status is "on", "off" or "unknown".
	Status string `json:"status"`

	// Source is "wire", "accessory" or "probe".
	Source string `json:"source"`

	// Peer is the sender of the status line, if any.
	Peer string `json:"peer,omitempty"`
}

// CommandMessage asks the bridge to change the accessory status.
// Topic: {prefix}/command/{bridge_id}
//
// A bare "on", "off" or "unknown" payload (any case) is also accepted.
type CommandMessage struct {
	// ID correlates the command in logs; generated when absent.
	ID string `json:"id"`

	// Timestamp is when the command was issued.
	Timestamp time.Time `json:"timestamp"`

	// Command is "on", "off" or "unknown".
	Command string `json:"command"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the device has reported its status.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates MQTT is down or the device is silent.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: {prefix}/health/{bridge_id}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Instance      string       `json:"instance"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// DeviceStatus is the current on/off/unknown status.
	DeviceStatus string `json:"device_status"`

	// LastSeen is when the last status line arrived.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	Statistics *Stats `json:"statistics,omitempty"`

	// Reason explains a degraded status.
	Reason string `json:"reason,omitempty"`
}

// DiscoveryMessage is the Home Assistant MQTT discovery config.
// Topic: {discovery_prefix}/{switch|light}/{bridge_id}/config
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	StateTopic          string          `json:"state_topic"`
	CommandTopic        string          `json:"command_topic"`
	AvailabilityTopic   string          `json:"availability_topic"`
	PayloadOn           string          `json:"payload_on"`
	PayloadOff          string          `json:"payload_off"`
	StateOn             string          `json:"state_on,omitempty"`
	StateOff            string          `json:"state_off,omitempty"`
	StateValueTemplate  string          `json:"state_value_template,omitempty"`
	ValueTemplate       string          `json:"value_template,omitempty"`
	DeviceClass         string          `json:"device_class,omitempty"`
	PayloadAvailable    string          `json:"payload_available"`
	PayloadNotAvailable string          `json:"payload_not_available"`
	Device              DiscoveryDevice `json:"device"`
}

// DiscoveryDevice describes the physical device in a DiscoveryMessage.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// MarshalJSON writes Timestamp as RFC 3339 in UTC.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON accepts an RFC 3339 timestamp or none at all.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// ParseCommand decodes a command payload: either a JSON CommandMessage or
// a bare status word. The returned message always has an ID and timestamp.
func ParseCommand(payload []byte) (CommandMessage, accessory.Status, error) {
	var cmd CommandMessage

	text := strings.TrimSpace(string(payload))
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal([]byte(text), &cmd); err != nil {
			return CommandMessage{}, accessory.StatusUnknown, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	} else {
		cmd.Command = text
	}

	s, err := accessory.ParseStatus(cmd.Command)
	if err != nil || cmd.Command == "" {
		return CommandMessage{}, accessory.StatusUnknown, fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Command)
	}

	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}
	return cmd, s, nil
}

// NewStateMessage creates a state message for an observed status.
func NewStateMessage(bridgeID string, ev Event) StateMessage {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return StateMessage{
		BridgeID:  bridgeID,
		Timestamp: at.UTC(),
		Status:    ev.Status.String(),
		Source:    ev.Source,
		Peer:      ev.Peer,
	}
}
