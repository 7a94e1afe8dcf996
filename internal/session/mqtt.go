package session

import (
	"context"

	"github.com/nerrad567/horn-node/internal/infrastructure/mqtt"
)

// mqttSession adapts the MQTT 3.1.1 client.
type mqttSession struct {
	client *mqtt.Client
	qos    byte
}

func (s *mqttSession) DeclarePublisher(_ context.Context, topic string) (Publisher, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	return &mqttPublisher{session: s, topic: topic}, nil
}

func (s *mqttSession) DeclareSubscriber(_ context.Context, topic string, handler Handler) (Subscriber, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	err := s.client.Subscribe(topic, s.qos, func(topic string, payload []byte, attachment map[string][]byte) error {
		handler(Message{Topic: topic, Payload: payload, Attachment: attachment})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &mqttSubscriber{client: s.client, topic: topic}, nil
}

func (s *mqttSession) Close() error {
	return s.client.Close()
}

func (s *mqttSession) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

type mqttPublisher struct {
	session *mqttSession
	topic   string
}

func (p *mqttPublisher) Put(ctx context.Context, payload []byte, attachment Attachment) error {
	return p.session.client.Publish(ctx, p.topic, payload, attachment, p.session.qos, false)
}

func (p *mqttPublisher) Undeclare() error { return nil }

type mqttSubscriber struct {
	client *mqtt.Client
	topic  string
}

func (s *mqttSubscriber) Undeclare() error {
	return s.client.Unsubscribe(s.topic)
}
