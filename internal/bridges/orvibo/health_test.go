package orvibo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
)

type stubHealthSource struct {
	status   accessory.Status
	lastSeen time.Time
	stats    Stats
}

func (s stubHealthSource) Status() accessory.Status { return s.status }
func (s stubHealthSource) LastSeen() time.Time      { return s.lastSeen }
func (s stubHealthSource) Stats() Stats             { return s.stats }

func TestHealthReporter_Assess(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		status     accessory.Status
		want       HealthStatus
		wantReason string
	}{
		{"healthy", true, accessory.StatusOn, HealthHealthy, ""},
		{"device unknown", true, accessory.StatusUnknown, HealthDegraded, "device status unknown"},
		{"mqtt down", false, accessory.StatusOn, HealthDegraded, "MQTT disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockMQTTClient()
			client.setConnected(tt.connected)
			h := NewHealthReporter(HealthReporterConfig{
				BridgeID:  "porch",
				Publisher: client,
				Source:    stubHealthSource{status: tt.status},
			})

			got, reason := h.assess()
			if got != tt.want || reason != tt.wantReason {
				t.Errorf("assess() = %q, %q; want %q, %q", got, reason, tt.want, tt.wantReason)
			}
		})
	}
}

func TestHealthReporter_StaleDevice(t *testing.T) {
	clock := newFakeClock()
	client := NewMockMQTTClient()
	client.setConnected(true)

	source := stubHealthSource{status: accessory.StatusOn, lastSeen: clock.Now().Add(-90 * time.Second)}
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:   "porch",
		StaleAfter: time.Minute,
		Publisher:  client,
		Source:     source,
		Clock:      clock,
	})

	got, reason := h.assess()
	if got != HealthDegraded || reason != "device silent for 1m30s" {
		t.Errorf("assess() = %q, %q", got, reason)
	}

	source.lastSeen = clock.Now().Add(-30 * time.Second)
	h.cfg.Source = source
	if got, _ := h.assess(); got != HealthHealthy {
		t.Errorf("assess() = %q, want healthy", got)
	}
}

func TestHealthReporter_Message(t *testing.T) {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID: "porch",
		Version:  "1.2.3",
		Source: stubHealthSource{
			status:   accessory.StatusOff,
			lastSeen: seen,
			stats:    Stats{LinesReceived: 4, Probes: 1},
		},
	})

	msg := h.Message(HealthHealthy, "")
	if msg.Bridge != "porch" || msg.Version != "1.2.3" || msg.DeviceStatus != "off" {
		t.Errorf("Message() = %+v", msg)
	}
	if msg.Instance == "" {
		t.Error("instance ID is empty")
	}
	if msg.LastSeen == nil || !msg.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", msg.LastSeen, seen)
	}
	if msg.Statistics == nil || msg.Statistics.LinesReceived != 4 {
		t.Errorf("Statistics = %+v", msg.Statistics)
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	client := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "porch",
		Topic:     "orvibo/health/porch",
		Interval:  time.Hour,
		Publisher: client,
		Source:    stubHealthSource{status: accessory.StatusOn},
	})

	h.Start(context.Background())
	h.Stop()
	h.Stop()

	published := client.GetPublished()
	want := []HealthStatus{HealthStarting, HealthHealthy, HealthStopping}
	if len(published) != len(want) {
		t.Fatalf("published %d messages, want %d", len(published), len(want))
	}
	for i, p := range published {
		if p.Topic != "orvibo/health/porch" || !p.Retained {
			t.Errorf("message %d published to %q retained=%v", i, p.Topic, p.Retained)
		}
		var msg HealthMessage
		if err := json.Unmarshal(p.Payload, &msg); err != nil {
			t.Fatalf("unmarshal health: %v", err)
		}
		if msg.Status != want[i] {
			t.Errorf("message %d status = %q, want %q", i, msg.Status, want[i])
		}
	}
}
