package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	ackTimeout     = 5 * time.Second
	keepAlive      = 60 * time.Second

	// quiesceMillis is how long Disconnect lets in-flight work finish.
	quiesceMillis = 1000

	maxQoS = 2
)

// Availability payloads. Plain strings so Home Assistant can consume the
// topic without a template.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// brokerURL returns tcp://host:port, or ssl://host:port with TLS.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// clientOptions translates cfg into paho options. When availability is
// set the broker is asked to publish a retained "offline" there if the
// bridge vanishes without calling Close.
func clientOptions(cfg config.MQTTConfig, availability string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if availability != "" {
		opts.SetWill(availability, PayloadOffline, 1, true)
	}
	return opts
}

// await waits for a paho token, mapping a timeout or broker error onto
// the sentinel base.
func await(token pahomqtt.Token, base error) error {
	if !token.WaitTimeout(ackTimeout) {
		return fmt.Errorf("%w: no acknowledgement within %v", base, ackTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", base, err)
	}
	return nil
}
