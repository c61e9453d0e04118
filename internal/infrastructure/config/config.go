package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
)

// Config is the root configuration structure for the Orvibo bridge.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge" toml:"bridge"`
	UDP       UDPConfig       `yaml:"udp" toml:"udp"`
	Probe     ProbeConfig     `yaml:"probe" toml:"probe"`
	MQTT      MQTTConfig      `yaml:"mqtt" toml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb" toml:"influxdb"`
	API       APIConfig       `yaml:"api" toml:"api"`
	Discovery DiscoveryConfig `yaml:"discovery" toml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// BridgeConfig identifies the bridged accessory.
type BridgeConfig struct {
	ID           string `yaml:"id" toml:"id"`
	Name         string `yaml:"name" toml:"name"`
	Manufacturer string `yaml:"manufacturer" toml:"manufacturer"`
	Model        string `yaml:"model" toml:"model"`
	Serial       string `yaml:"serial" toml:"serial"`
	Firmware     string `yaml:"firmware" toml:"firmware"`

	// Kind is one of outlet, light or switch.
	Kind string `yaml:"kind" toml:"kind"`
}

// UDPConfig contains the status protocol transport settings.
type UDPConfig struct {
	// Host receives outbound status lines. A hostname is resolved once at startup.
	Host          string `yaml:"host" toml:"host"`
	ListenAddress string `yaml:"listen_address" toml:"listen_address"`
	ListenPort    int    `yaml:"listen_port" toml:"listen_port"`
	TransmitPort  int    `yaml:"transmit_port" toml:"transmit_port"`
	DatagramSize  int    `yaml:"datagram_size" toml:"datagram_size"`
	ReuseAddress  bool   `yaml:"reuse_address" toml:"reuse_address"`
	Broadcast     bool   `yaml:"broadcast" toml:"broadcast"`
}

// ProbeConfig controls the liveness cycle. Intervals are in seconds.
type ProbeConfig struct {
	TickInterval   int `yaml:"tick_interval" toml:"tick_interval"`
	ThresholdTicks int `yaml:"threshold_ticks" toml:"threshold_ticks"`
	RecoveryDelay  int `yaml:"recovery_delay" toml:"recovery_delay"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled         bool                `yaml:"enabled" toml:"enabled"`
	Broker          MQTTBrokerConfig    `yaml:"broker" toml:"broker"`
	Auth            MQTTAuthConfig      `yaml:"auth" toml:"auth"`
	QoS             int                 `yaml:"qos" toml:"qos"`
	Reconnect       MQTTReconnectConfig `yaml:"reconnect" toml:"reconnect"`
	TopicPrefix     string              `yaml:"topic_prefix" toml:"topic_prefix"`
	DiscoveryPrefix string              `yaml:"discovery_prefix" toml:"discovery_prefix"`
	HealthInterval  int                 `yaml:"health_interval" toml:"health_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	TLS      bool   `yaml:"tls" toml:"tls"`
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay" toml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts" toml:"max_attempts"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Path        string `yaml:"path" toml:"path"`
	WALMode     bool   `yaml:"wal_mode" toml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout" toml:"busy_timeout"`

	// RetentionDays bounds the status history; 0 keeps everything.
	RetentionDays int `yaml:"retention_days" toml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	URL           string `yaml:"url" toml:"url"`
	Token         string `yaml:"token" toml:"token"`
	Org           string `yaml:"org" toml:"org"`
	Bucket        string `yaml:"bucket" toml:"bucket"`
	BatchSize     int    `yaml:"batch_size" toml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval" toml:"flush_interval"`
}

// APIConfig contains the HTTP status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Host    string `yaml:"host" toml:"host"`
	Port    int    `yaml:"port" toml:"port"`
}

// DiscoveryConfig contains mDNS advertisement settings.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Service string `yaml:"service" toml:"service"`
	Domain  string `yaml:"domain" toml:"domain"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	Output string `yaml:"output" toml:"output"`
}

// envPrefix prefixes every environment override.
const envPrefix = "ORVIBO_BRIDGE_"

// Load reads configuration from a YAML or TOML file and applies
// environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values; ".toml" files are decoded as TOML, anything else as YAML
//  3. Environment variables (override file values)
//
// An empty path skips step 2.
//
// Environment variables follow the pattern: ORVIBO_BRIDGE_SECTION_KEY
// For example: ORVIBO_BRIDGE_UDP_HOST, ORVIBO_BRIDGE_MQTT_PASSWORD
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// defaultConfig returns a Config with the stock device defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:           "orvibo-1",
			Name:         "Orvibo",
			Manufacturer: "Orvibo",
			Model:        "UDP Bridge",
			Serial:       "234",
			Firmware:     "1.0.0",
			Kind:         "outlet",
		},
		UDP: UDPConfig{
			Host:          "127.0.0.1",
			ListenAddress: "0.0.0.0",
			ListenPort:    14443,
			TransmitPort:  14442,
			DatagramSize:  4096,
			ReuseAddress:  true,
			Broadcast:     true,
		},
		Probe: ProbeConfig{
			TickInterval:   2,
			ThresholdTicks: 30,
			RecoveryDelay:  5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "orvibo-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix:     "orvibo",
			DiscoveryPrefix: "homeassistant",
			HealthInterval:  30,
		},
		Database: DatabaseConfig{
			Path:          "./data/orvibo.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8089,
		},
		Discovery: DiscoveryConfig{
			Service: "_orvibo._udp",
			Domain:  "local.",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Bridge.ID, "ID")
	setString(&cfg.Bridge.Name, "NAME")
	setString(&cfg.Bridge.Kind, "KIND")

	setString(&cfg.UDP.Host, "UDP_HOST")
	setString(&cfg.UDP.ListenAddress, "UDP_LISTEN_ADDRESS")
	setInt(&cfg.UDP.ListenPort, "UDP_LISTEN_PORT")
	setInt(&cfg.UDP.TransmitPort, "UDP_TRANSMIT_PORT")

	setBool(&cfg.MQTT.Enabled, "MQTT_ENABLED")
	setString(&cfg.MQTT.Broker.Host, "MQTT_HOST")
	setInt(&cfg.MQTT.Broker.Port, "MQTT_PORT")
	setString(&cfg.MQTT.Auth.Username, "MQTT_USERNAME")
	setString(&cfg.MQTT.Auth.Password, "MQTT_PASSWORD")

	setBool(&cfg.Database.Enabled, "DATABASE_ENABLED")
	setString(&cfg.Database.Path, "DATABASE_PATH")

	setString(&cfg.InfluxDB.Token, "INFLUXDB_TOKEN")

	setBool(&cfg.API.Enabled, "API_ENABLED")
	setInt(&cfg.API.Port, "API_PORT")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

// setInt ignores values that are not integers; Validate reports the
// resulting (unchanged) field if it is out of range.
func setInt(dst *int, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if _, err := accessory.ParseKind(c.Bridge.Kind); err != nil {
		errs = append(errs, "bridge.kind must be outlet, light or switch")
	}

	if c.UDP.Host == "" {
		errs = append(errs, "udp.host is required")
	}
	if c.UDP.ListenPort < 0 || c.UDP.ListenPort > 65535 {
		errs = append(errs, "udp.listen_port must be between 0 and 65535")
	}
	if c.UDP.TransmitPort < 1 || c.UDP.TransmitPort > 65535 {
		errs = append(errs, "udp.transmit_port must be between 1 and 65535")
	}
	if c.UDP.DatagramSize < 2 {
		errs = append(errs, "udp.datagram_size must be at least 2")
	}

	if c.Probe.TickInterval < 1 {
		errs = append(errs, "probe.tick_interval must be positive")
	}
	if c.Probe.ThresholdTicks < 1 {
		errs = append(errs, "probe.threshold_ticks must be positive")
	}
	if c.Probe.RecoveryDelay < 1 {
		errs = append(errs, "probe.recovery_delay must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required")
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Discovery.Enabled && c.Discovery.Service == "" {
		errs = append(errs, "discovery.service is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Redacted returns a copy with secrets masked, suitable for logging.
func (c *Config) Redacted() Config {
	out := *c
	if out.MQTT.Auth.Password != "" {
		out.MQTT.Auth.Password = "***"
	}
	if out.InfluxDB.Token != "" {
		out.InfluxDB.Token = "***"
	}
	return out
}

// TickInterval returns the probe tick as a Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Probe.TickInterval) * time.Second
}

// RecoveryDelay returns the delay between a liveness query and the
// follow-up probe as a Duration.
func (c *Config) RecoveryDelay() time.Duration {
	return time.Duration(c.Probe.RecoveryDelay) * time.Second
}

// HealthInterval returns the MQTT health publish interval as a Duration.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.MQTT.HealthInterval) * time.Second
}
