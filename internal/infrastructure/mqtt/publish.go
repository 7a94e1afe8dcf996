package mqtt

import (
	"context"
	"fmt"
	"time"
)

// maxPayloadSize bounds a single encoded message (1MB).
const maxPayloadSize = 1 << 20

// Publish sends payload with its attachment to topic.
//
// The wait for broker acknowledgement is bounded by ctx and by the default
// publish timeout, whichever is shorter. QoS 0 publishes return once written.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, attachment map[string][]byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	data, err := EncodeEnvelope(payload, attachment)
	if err != nil {
		return err
	}
	if len(data) > maxPayloadSize {
		return fmt.Errorf("%w: message size %d exceeds maximum %d bytes", ErrPublishFailed, len(data), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, data)

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	if !token.WaitTimeout(timeout) {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
		}
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
