package influxdb_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/config"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "orvibo-dev-token",
		Org:           "home",
		Bucket:        "orvibo",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

// connectOrSkip skips the test unless an InfluxDB server is reachable.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		if os.Getenv("RUN_INTEGRATION") != "" {
			t.Fatalf("Connect() error = %v", err)
		}
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := influxdb.Connect(ctx, cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestStatusPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		status string
		value  int64
	}{
		{"on", 1},
		{"off", 0},
		{"unknown", -1},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			p := influxdb.StatusPoint("porch", tt.status, "wire", at)

			if p.Name() != influxdb.MeasurementStatus {
				t.Errorf("Name() = %q", p.Name())
			}
			if !p.Time().Equal(at) {
				t.Errorf("Time() = %v, want %v", p.Time(), at)
			}

			tags := map[string]string{}
			for _, tag := range p.TagList() {
				tags[tag.Key] = tag.Value
			}
			if tags["bridge_id"] != "porch" || tags["source"] != "wire" {
				t.Errorf("tags = %v", tags)
			}

			fields := map[string]interface{}{}
			for _, f := range p.FieldList() {
				fields[f.Key] = f.Value
			}
			if fields["status"] != tt.status {
				t.Errorf("status field = %v, want %q", fields["status"], tt.status)
			}
			if fields["value"] != tt.value {
				t.Errorf("value field = %v (%T), want %d", fields["value"], fields["value"], tt.value)
			}
		})
	}
}

func TestProbePoint(t *testing.T) {
	p := influxdb.ProbePoint("porch", "query", time.Now())

	if p.Name() != influxdb.MeasurementProbe {
		t.Errorf("Name() = %q", p.Name())
	}
	found := false
	for _, tag := range p.TagList() {
		if tag.Key == "kind" && tag.Value == "query" {
			found = true
		}
	}
	if !found {
		t.Errorf("kind tag missing: %v", p.TagList())
	}
}

func TestClosedClientWritesAreNoops(t *testing.T) {
	var c *influxdb.Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	c.WriteStatusChange("porch", "on", "wire")
	c.WriteProbe("porch", "probe")
	c.Flush()
}

func TestIntegration_WriteAndHealth(t *testing.T) {
	client := connectOrSkip(t)
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	client.WriteStatusChange("it", "on", "wire")
	client.WriteProbe("it", "probe")
	client.WritePoint("orvibo_link", map[string]string{"bridge_id": "it"}, map[string]interface{}{"send_failures": 0})
	client.Flush()
}
