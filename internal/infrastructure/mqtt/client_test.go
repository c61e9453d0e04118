package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "orvibo-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// recordingLogger captures Warn/Error calls.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record(msg) }

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func TestTopics(t *testing.T) {
	topics := NewTopics("", "")

	tests := []struct {
		got, want string
	}{
		{topics.State("porch"), "orvibo/state/porch"},
		{topics.Command("porch"), "orvibo/command/porch"},
		{topics.Health("porch"), "orvibo/health/porch"},
		{topics.Availability("porch"), "orvibo/availability/porch"},
		{topics.AllCommands(), "orvibo/command/+"},
		{topics.Discovery("light", "porch"), "homeassistant/light/porch/config"},
		{NewTopics("home/plugs", "ha").State("x"), "home/plugs/state/x"},
		{NewTopics("home/plugs", "ha").Discovery("switch", "x"), "ha/switch/x/config"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestBrokerURL(t *testing.T) {
	cfg := testConfig()
	if got := brokerURL(cfg); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}

	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	if got := brokerURL(cfg); got != "ssl://127.0.0.1:8883" {
		t.Errorf("brokerURL() = %q", got)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "pw"}
	opts := clientOptions(cfg, "orvibo/availability/porch")

	if opts.ClientID != "orvibo-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
	if !opts.WillEnabled || opts.WillTopic != "orvibo/availability/porch" || !opts.WillRetained {
		t.Errorf("will = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if string(opts.WillPayload) != PayloadOffline {
		t.Errorf("will payload = %q, want offline", opts.WillPayload)
	}
	if noWill := clientOptions(cfg, ""); noWill.WillEnabled {
		t.Error("will set without an availability topic")
	}
	if len(opts.Servers) != 1 || !strings.HasPrefix(opts.Servers[0].String(), "tcp://127.0.0.1") {
		t.Errorf("servers = %v", opts.Servers)
	}
}

func TestValidatePublish(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"valid", "orvibo/state/x", []byte("{}"), 1, nil},
		{"nil payload", "orvibo/state/x", nil, 0, nil},
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"qos 3", "orvibo/state/x", nil, 3, ErrInvalidQoS},
		{"too large", "orvibo/state/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePublish(tt.topic, tt.payload, tt.qos)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validatePublish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDisconnectedClient(t *testing.T) {
	var nilClient *Client
	if nilClient.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil client = %v", err)
	}

	c := &Client{cfg: testConfig()}

	if err := c.Publish("orvibo/state/x", []byte("{}"), 1, true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.Subscribe("orvibo/command/x", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.Subscribe("orvibo/command/x", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("orvibo/command/x") {
		t.Error("failed subscription was tracked")
	}
}

func TestDispatch_RecoversPanicAndLogsErrors(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "t", nil)
	c.dispatch(func(string, []byte) error { return nil }, "t", nil)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	want := []string{"MQTT handler panic recovered", "MQTT handler returned error"}
	if len(logger.messages) != len(want) {
		t.Fatalf("logged %v, want %v", logger.messages, want)
	}
	for i := range want {
		if logger.messages[i] != want[i] {
			t.Errorf("message[%d] = %q, want %q", i, logger.messages[i], want[i])
		}
	}
}

func TestSubscriptionSet(t *testing.T) {
	var s subscriptionSet
	if s.has("a") || s.len() != 0 {
		t.Fatal("zero set not empty")
	}

	s.put(subscription{topic: "a", qos: 1})
	s.put(subscription{topic: "b", qos: 0})
	s.put(subscription{topic: "a", qos: 2})

	if s.len() != 2 {
		t.Errorf("len() = %d, want 2", s.len())
	}
	var qos byte
	s.each(func(sub subscription) {
		if sub.topic == "a" {
			qos = sub.qos
		}
	})
	if qos != 2 {
		t.Errorf("replaced subscription qos = %d, want 2", qos)
	}

	s.remove("a")
	if s.has("a") || !s.has("b") {
		t.Error("remove() dropped the wrong topic")
	}
}
