package orvibo

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
	"github.com/rhx/orvibo-udp-hap/internal/history"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/mqtt"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	handlers  map[string]mqtt.MessageHandler
	connected bool
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) setConnected(c bool) {
	m.mu.Lock()
	m.connected = c
	m.mu.Unlock()
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPublish(nil), m.published...)
}

func (m *MockMQTTClient) handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

func newTestExposer(kind accessory.Kind) (*Exposer, *MockMQTTClient, *accessory.Accessory) {
	client := NewMockMQTTClient()
	acc := accessory.New(kind, accessory.Info{Name: "Porch Light", Manufacturer: "Orvibo", Model: "S20", SerialNumber: "234", FirmwareRevision: "1.0.0"})
	e := NewExposer(ExposerConfig{
		BridgeID:  "porch",
		Kind:      kind,
		Info:      acc.Info(),
		Topics:    mqtt.NewTopics("", ""),
		QoS:       1,
		Client:    client,
		Accessory: acc,
	})
	return e, client, acc
}

func TestExposer_StartPublishesDiscovery(t *testing.T) {
	tests := []struct {
		kind      accessory.Kind
		wantTopic string
		wantClass string
	}{
		{accessory.KindOutlet, "homeassistant/switch/porch/config", "outlet"},
		{accessory.KindSwitch, "homeassistant/switch/porch/config", "switch"},
		{accessory.KindLight, "homeassistant/light/porch/config", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e, client, _ := newTestExposer(tt.kind)
			if err := e.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			published := client.GetPublished()
			if len(published) != 1 {
				t.Fatalf("published %d messages, want 1", len(published))
			}
			p := published[0]
			if p.Topic != tt.wantTopic || !p.Retained {
				t.Errorf("discovery published to %q retained=%v", p.Topic, p.Retained)
			}

			var msg DiscoveryMessage
			if err := json.Unmarshal(p.Payload, &msg); err != nil {
				t.Fatalf("unmarshal discovery: %v", err)
			}
			if msg.DeviceClass != tt.wantClass {
				t.Errorf("device_class = %q, want %q", msg.DeviceClass, tt.wantClass)
			}
			if msg.CommandTopic != "orvibo/command/porch" || msg.StateTopic != "orvibo/state/porch" {
				t.Errorf("topics = %q / %q", msg.CommandTopic, msg.StateTopic)
			}
			if msg.Device.Manufacturer != "Orvibo" || msg.Device.SerialNumber != "234" || msg.Name != "Porch Light" {
				t.Errorf("device = %+v", msg.Device)
			}

			if client.handler("orvibo/command/porch") == nil {
				t.Error("command topic not subscribed")
			}
		})
	}
}

func TestExposer_CommandRequestsAccessory(t *testing.T) {
	e, client, acc := newTestExposer(accessory.KindOutlet)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var got []accessory.Status
	acc.OnChange(func(s accessory.Status) { got = append(got, s) })

	handler := client.handler("orvibo/command/porch")
	if err := handler("orvibo/command/porch", []byte("ON")); err != nil {
		t.Fatalf("handler(ON) error = %v", err)
	}
	if err := handler("orvibo/command/porch", []byte(`{"command":"off"}`)); err != nil {
		t.Fatalf("handler(json) error = %v", err)
	}
	if err := handler("orvibo/command/porch", []byte("toggle")); err == nil {
		t.Error("handler(toggle) succeeded")
	}

	if len(got) != 2 || got[0] != accessory.StatusOn || got[1] != accessory.StatusOff {
		t.Errorf("requests = %v, want [on off]", got)
	}
	if acc.Status() != accessory.StatusOff {
		t.Errorf("accessory status = %v, want off", acc.Status())
	}
}

func TestExposer_ObservePublishesState(t *testing.T) {
	e, client, _ := newTestExposer(accessory.KindOutlet)

	e.Observe(context.Background(), Event{Kind: EventProbe})
	e.Observe(context.Background(), Event{Kind: EventStatus, Status: accessory.StatusOn, Source: history.SourceWire})

	client.setConnected(false)
	e.Observe(context.Background(), Event{Kind: EventStatus, Status: accessory.StatusOff, Source: history.SourceWire})

	published := client.GetPublished()
	if len(published) != 1 {
		t.Fatalf("published %d messages, want 1", len(published))
	}
	if published[0].Topic != "orvibo/state/porch" || !published[0].Retained {
		t.Errorf("state published to %q retained=%v", published[0].Topic, published[0].Retained)
	}

	var msg StateMessage
	if err := json.Unmarshal(published[0].Payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if msg.Status != "on" || msg.Source != "wire" {
		t.Errorf("state = %+v", msg)
	}
}
