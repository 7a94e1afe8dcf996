package mqttv5

import "errors"

// Domain-specific errors for MQTT 5 operations.
var (
	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("mqttv5: client not connected")

	// ErrConnectionFailed is returned when the broker could not be reached in time.
	ErrConnectionFailed = errors.New("mqttv5: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqttv5: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqttv5: subscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	ErrInvalidQoS = errors.New("mqttv5: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqttv5: topic cannot be empty")

	// ErrInvalidURL is returned when the broker URL cannot be parsed.
	ErrInvalidURL = errors.New("mqttv5: invalid broker URL")
)
