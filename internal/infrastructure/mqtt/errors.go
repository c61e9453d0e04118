package mqtt

import "errors"

var (
	ErrNotConnected     = errors.New("mqtt: broker connection down")
	ErrConnectionFailed = errors.New("mqtt: cannot connect to broker")

	// Wrapped with the broker's reason or a timeout.
	ErrPublishFailed     = errors.New("mqtt: publish rejected")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe rejected")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe rejected")

	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
