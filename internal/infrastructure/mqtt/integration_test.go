//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_PublishSubscribeRoundtrip(t *testing.T) {
	topics := NewTopics("orvibo-it", "homeassistant-it")
	client, err := Connect(testConfig(), topics.Availability("it"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var mu sync.Mutex
	received := make(chan string, 1)
	err = client.Subscribe(topics.Command("it"), 1, func(_ string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		received <- string(payload)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.PublishString(topics.Command("it"), "on", 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "on" {
			t.Errorf("payload = %q, want on", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
