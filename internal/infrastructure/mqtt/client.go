package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/config"
)

// Logger receives handler failures. logging.Logger satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client is the bridge's broker connection.
//
// It owns the availability topic: a retained "online" goes out on every
// (re)connect, "offline" on Close, and the Last Will covers a crash.
// Subscriptions made through Subscribe survive reconnects.
//
// All methods are safe for concurrent use.
type Client struct {
	paho         pahomqtt.Client
	cfg          config.MQTTConfig
	availability string

	online atomic.Bool
	subs   subscriptionSet

	hookMu       sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Connect dials the broker and waits for the first CONNACK.
//
// Parameters:
//   - cfg: broker address, credentials and reconnect backoff
//   - availability: retained online/offline topic, or "" for none
//
// Returns ErrConnectionFailed if the broker does not accept the session
// within the connect timeout. Later drops are retried by paho.
func Connect(cfg config.MQTTConfig, availability string) (*Client, error) {
	c := &Client{cfg: cfg, availability: availability}

	opts := clientOptions(cfg, availability).
		SetOnConnectHandler(func(pahomqtt.Client) { c.connected() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: %s: timeout after %v", ErrConnectionFailed, brokerURL(cfg), connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg), err)
	}

	// connected() may still be pending on paho's goroutine.
	c.online.Store(true)
	return c, nil
}

func (c *Client) connected() {
	c.online.Store(true)
	c.subs.each(func(s subscription) {
		c.paho.Subscribe(s.topic, s.qos, c.wrapHandler(s.handler))
	})
	if c.availability != "" {
		c.paho.Publish(c.availability, byte(c.cfg.QoS), true, PayloadOnline)
	}

	c.hookMu.RLock()
	fn := c.onConnect
	c.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) lost(err error) {
	c.online.Store(false)

	c.hookMu.RLock()
	fn := c.onDisconnect
	c.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Close marks the bridge offline and disconnects. Safe on a nil client.
func (c *Client) Close() error {
	if c == nil || c.paho == nil {
		return nil
	}
	if c.availability != "" && c.IsConnected() {
		c.paho.Publish(c.availability, byte(c.cfg.QoS), true, PayloadOffline).WaitTimeout(ackTimeout)
	}
	c.paho.Disconnect(quiesceMillis)
	c.online.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c != nil && c.paho != nil && c.online.Load() && c.paho.IsConnected()
}

// SetOnConnect registers fn for the first connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.hookMu.Lock()
	c.onConnect = fn
	c.hookMu.Unlock()
}

// SetOnDisconnect registers fn for connection loss.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = fn
	c.hookMu.Unlock()
}

// SetLogger sets where handler errors and panics are reported.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) log() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.logger
}
