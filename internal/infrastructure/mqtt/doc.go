// Package mqtt provides MQTT client connectivity for the bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after reconnect
//   - An availability topic backed by the Last Will and Testament
//
// # Architecture
//
// The accessory is exposed to the home automation framework over MQTT:
//
//	Automation ↔ MQTT Broker ↔ Orvibo Bridge ↔ UDP ↔ Device controller
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.MQTT.DiscoveryPrefix)
//	client, err := mqtt.Connect(cfg.MQTT, topics.Availability(cfg.Bridge.ID))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.Command(cfg.Bridge.ID), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s", payload)
//	        return nil
//	    })
//
// TLS should be enabled (cfg.Broker.TLS) whenever the broker is not local.
package mqtt
