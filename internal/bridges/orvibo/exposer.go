package orvibo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of *mqtt.Client used to expose the accessory.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Requester applies a status change asked for by the automation
// framework. *accessory.Accessory satisfies it.
type Requester interface {
	Request(s accessory.Status)
}

// ExposerConfig holds configuration for an Exposer.
type ExposerConfig struct {
	BridgeID string
	Kind     accessory.Kind
	Info     accessory.Info
	Topics   mqtt.Topics
	QoS      byte

	Client    MQTTClient
	Accessory Requester
	Logger    Logger
}

// Exposer presents the accessory on MQTT: it announces a Home Assistant
// discovery config, publishes retained state messages and turns command
// messages into accessory requests.
type Exposer struct {
	cfg ExposerConfig
}

// NewExposer creates an exposer. Call Start once the client is connected.
func NewExposer(cfg ExposerConfig) *Exposer {
	if cfg.Kind == "" {
		cfg.Kind = accessory.KindOutlet
	}
	return &Exposer{cfg: cfg}
}

// Start publishes the discovery config and subscribes to commands.
func (e *Exposer) Start() error {
	payload, err := json.Marshal(e.Discovery())
	if err != nil {
		return fmt.Errorf("marshal discovery config: %w", err)
	}

	topic := e.cfg.Topics.Discovery(e.cfg.Kind.Component(), e.cfg.BridgeID)
	if err := e.cfg.Client.Publish(topic, payload, e.cfg.QoS, true); err != nil {
		return fmt.Errorf("publish discovery config: %w", err)
	}

	commandTopic := e.cfg.Topics.Command(e.cfg.BridgeID)
	if err := e.cfg.Client.Subscribe(commandTopic, e.cfg.QoS, e.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	e.logInfo("exposed accessory on MQTT",
		"discovery_topic", topic,
		"command_topic", commandTopic)
	return nil
}

// Discovery builds the Home Assistant discovery config for the accessory.
func (e *Exposer) Discovery() DiscoveryMessage {
	name := e.cfg.Info.Name
	if name == "" {
		name = e.cfg.BridgeID
	}

	return DiscoveryMessage{
		Name:                name,
		UniqueID:            "orvibo_" + e.cfg.BridgeID,
		StateTopic:          e.cfg.Topics.State(e.cfg.BridgeID),
		CommandTopic:        e.cfg.Topics.Command(e.cfg.BridgeID),
		AvailabilityTopic:   e.cfg.Topics.Availability(e.cfg.BridgeID),
		PayloadOn:           "on",
		PayloadOff:          "off",
		StateOn:             "on",
		StateOff:            "off",
		StateValueTemplate:  "{{ value_json.status }}",
		DeviceClass:         e.cfg.Kind.DeviceClass(),
		PayloadAvailable:    mqtt.PayloadOnline,
		PayloadNotAvailable: mqtt.PayloadOffline,
		Device: DiscoveryDevice{
			Identifiers:  []string{"orvibo_" + e.cfg.BridgeID},
			Name:         name,
			Manufacturer: e.cfg.Info.Manufacturer,
			Model:        e.cfg.Info.Model,
			SerialNumber: e.cfg.Info.SerialNumber,
			SWVersion:    e.cfg.Info.FirmwareRevision,
		},
	}
}

// Observe publishes a retained state message for status transitions.
func (e *Exposer) Observe(_ context.Context, ev Event) {
	if ev.Kind != EventStatus || !e.cfg.Client.IsConnected() {
		return
	}

	payload, err := json.Marshal(NewStateMessage(e.cfg.BridgeID, ev))
	if err != nil {
		e.logError("failed to marshal state", err)
		return
	}
	if err := e.cfg.Client.Publish(e.cfg.Topics.State(e.cfg.BridgeID), payload, e.cfg.QoS, true); err != nil {
		e.logError("failed to publish state", err)
	}
}

// handleCommand runs on the MQTT client's goroutine.
func (e *Exposer) handleCommand(topic string, payload []byte) error {
	cmd, status, err := ParseCommand(payload)
	if err != nil {
		return err
	}

	e.logInfo("command received",
		"command_id", cmd.ID,
		"topic", topic,
		"command", status.String(),
		"source", cmd.Source)

	e.cfg.Accessory.Request(status)
	return nil
}

func (e *Exposer) logInfo(msg string, keysAndValues ...any) {
	if e.cfg.Logger != nil {
		e.cfg.Logger.Info(msg, keysAndValues...)
	}
}

func (e *Exposer) logError(msg string, err error) {
	if e.cfg.Logger != nil {
		e.cfg.Logger.Error(msg, "error", err)
	}
}
