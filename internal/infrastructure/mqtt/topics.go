package mqtt

import "fmt"

// Topics builds the bridge's MQTT topic names.
//
// Bridge topics use the scheme {prefix}/{category}/{bridge_id}:
//
//	topics := mqtt.NewTopics("orvibo", "homeassistant")
//	topics.State("porch")        // "orvibo/state/porch"
//	topics.Command("porch")      // "orvibo/command/porch"
//	topics.Discovery("switch", "porch")
//	// "homeassistant/switch/porch/config"
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
}

// NewTopics returns a Topics with the given prefixes, falling back to
// "orvibo" and "homeassistant" when empty.
func NewTopics(prefix, discoveryPrefix string) Topics {
	if prefix == "" {
		prefix = "orvibo"
	}
	if discoveryPrefix == "" {
		discoveryPrefix = "homeassistant"
	}
	return Topics{Prefix: prefix, DiscoveryPrefix: discoveryPrefix}
}

// State is the retained status topic.
func (t Topics) State(bridgeID string) string {
	return fmt.Sprintf("%s/state/%s", t.Prefix, bridgeID)
}

// Command receives on/off requests from the automation framework.
func (t Topics) Command(bridgeID string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix, bridgeID)
}

// Health is the retained health report topic.
func (t Topics) Health(bridgeID string) string {
	return fmt.Sprintf("%s/health/%s", t.Prefix, bridgeID)
}

// Availability carries the plain "online"/"offline" payloads.
func (t Topics) Availability(bridgeID string) string {
	return fmt.Sprintf("%s/availability/%s", t.Prefix, bridgeID)
}

// AllCommands matches the command topic of every bridge.
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", t.Prefix)
}

// Discovery is the Home Assistant discovery config topic.
func (t Topics) Discovery(component, bridgeID string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.DiscoveryPrefix, component, bridgeID)
}
