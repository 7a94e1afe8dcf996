package session

import (
	"context"

	"github.com/nerrad567/horn-node/internal/infrastructure/mqttv5"
)

// mqttv5Session adapts the MQTT 5 client.
type mqttv5Session struct {
	client *mqttv5.Client
	qos    byte
}

func (s *mqttv5Session) DeclarePublisher(_ context.Context, topic string) (Publisher, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	return &mqttv5Publisher{session: s, topic: topic}, nil
}

func (s *mqttv5Session) DeclareSubscriber(ctx context.Context, topic string, handler Handler) (Subscriber, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	err := s.client.Subscribe(ctx, topic, s.qos, func(topic string, payload []byte, attachment map[string][]byte) error {
		handler(Message{Topic: topic, Payload: payload, Attachment: attachment})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &mqttv5Subscriber{client: s.client, topic: topic}, nil
}

func (s *mqttv5Session) Close() error {
	return s.client.Close()
}

func (s *mqttv5Session) HealthCheck(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

type mqttv5Publisher struct {
	session *mqttv5Session
	topic   string
}

func (p *mqttv5Publisher) Put(ctx context.Context, payload []byte, attachment Attachment) error {
	return p.session.client.Publish(ctx, p.topic, payload, attachment, p.session.qos, false)
}

func (p *mqttv5Publisher) Undeclare() error { return nil }

type mqttv5Subscriber struct {
	client *mqttv5.Client
	topic  string
}

func (s *mqttv5Subscriber) Undeclare() error {
	return s.client.Unsubscribe(s.topic)
}
