package mqtt

import (
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler handles one inbound message. It runs on paho's
// goroutine, so it must not block. A returned error is only logged.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// subscriptionSet remembers subscriptions so they can be replayed after
// a reconnect. The zero value is ready to use.
type subscriptionSet struct {
	mu      sync.RWMutex
	byTopic map[string]subscription
}

func (s *subscriptionSet) put(sub subscription) {
	s.mu.Lock()
	if s.byTopic == nil {
		s.byTopic = make(map[string]subscription)
	}
	s.byTopic[sub.topic] = sub
	s.mu.Unlock()
}

func (s *subscriptionSet) remove(topic string) {
	s.mu.Lock()
	delete(s.byTopic, topic)
	s.mu.Unlock()
}

func (s *subscriptionSet) has(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byTopic[topic]
	return ok
}

func (s *subscriptionSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTopic)
}

func (s *subscriptionSet) each(fn func(subscription)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.byTopic {
		fn(sub)
	}
}

// Subscribe routes messages on topic (wildcards allowed) to handler and
// keeps the subscription across reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.subs.put(subscription{topic: topic, qos: qos, handler: handler})
	if err := await(c.paho.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.subs.remove(topic)
		return err
	}
	return nil
}

// Unsubscribe drops a subscription made with Subscribe.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.subs.remove(topic)
	return await(c.paho.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// SubscriptionCount returns how many topics are subscribed.
func (c *Client) SubscriptionCount() int { return c.subs.len() }

// HasSubscription reports whether topic, compared literally, is subscribed.
func (c *Client) HasSubscription(topic string) bool { return c.subs.has(topic) }

func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch shields paho's router from handler panics.
func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if l := c.log(); l != nil {
				l.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
			}
		}
	}()

	if err := handler(topic, payload); err != nil {
		if l := c.log(); l != nil {
			l.Warn("MQTT handler returned error", "topic", topic, "error", err)
		}
	}
}
