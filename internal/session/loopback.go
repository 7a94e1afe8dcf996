package session

import (
	"context"
	"sync"
)

// historyLimit bounds the messages a Bus keeps for Published.
const historyLimit = 256

// Bus is an in-process message bus. Each subscriber has its own dispatch
// goroutine, so delivery is asynchronous and ordered per subscriber, and a
// Put never waits on a handler.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]*loopSubscriber
	sent   []Message
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*loopSubscriber)}
}

// Session returns a new session attached to the bus.
func (b *Bus) Session() Session {
	return &loopSession{bus: b}
}

// Published returns copies of the messages put on topic, in order. Only the
// most recent historyLimit messages across all topics are kept.
func (b *Bus) Published(topic string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Message
	for _, m := range b.sent {
		if m.Topic == topic {
			out = append(out, Message{
				Topic:      m.Topic,
				Payload:    append([]byte(nil), m.Payload...),
				Attachment: copyAttachment(m.Attachment),
			})
		}
	}
	return out
}

// Close stops every subscriber on the bus and waits for their handlers.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*loopSubscriber
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[string][]*loopSubscriber)
	b.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
}

func (b *Bus) put(msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if len(b.sent) == historyLimit {
		copy(b.sent, b.sent[1:])
		b.sent = b.sent[:historyLimit-1]
	}
	b.sent = append(b.sent, msg)
	for _, s := range b.subs[msg.Topic] {
		// Each subscriber gets its own copy.
		s.enqueue(Message{
			Topic:      msg.Topic,
			Payload:    append([]byte(nil), msg.Payload...),
			Attachment: copyAttachment(msg.Attachment),
		})
	}
	return nil
}

func (b *Bus) add(s *loopSubscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.subs[s.topic] = append(b.subs[s.topic], s)
	return nil
}

func (b *Bus) remove(s *loopSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[s.topic]
	for i, other := range subs {
		if other == s {
			b.subs[s.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

type loopSession struct {
	bus *Bus

	mu     sync.Mutex
	subs   []*loopSubscriber
	closed bool
}

func (s *loopSession) DeclarePublisher(_ context.Context, topic string) (Publisher, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return &loopPublisher{session: s, topic: topic}, nil
}

func (s *loopSession) DeclareSubscriber(_ context.Context, topic string, handler Handler) (Subscriber, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	sub := newLoopSubscriber(s.bus, topic, handler)
	if err := s.bus.add(sub); err != nil {
		sub.stop()
		return nil, err
	}
	s.subs = append(s.subs, sub)
	return sub, nil
}

func (s *loopSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Undeclare() //nolint:errcheck // always nil
	}
	return nil
}

func (s *loopSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HealthCheck reports ErrClosed once the session or bus is closed.
func (s *loopSession) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.bus.mu.Lock()
	busClosed := s.bus.closed
	s.bus.mu.Unlock()
	if busClosed || s.isClosed() {
		return ErrClosed
	}
	return nil
}

type loopPublisher struct {
	session *loopSession
	topic   string

	mu         sync.Mutex
	undeclared bool
}

func (p *loopPublisher) Put(ctx context.Context, payload []byte, attachment Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	undeclared := p.undeclared
	p.mu.Unlock()
	if undeclared || p.session.isClosed() {
		return ErrClosed
	}
	return p.session.bus.put(Message{
		Topic:      p.topic,
		Payload:    append([]byte(nil), payload...),
		Attachment: copyAttachment(attachment),
	})
}

func (p *loopPublisher) Undeclare() error {
	p.mu.Lock()
	p.undeclared = true
	p.mu.Unlock()
	return nil
}

type loopSubscriber struct {
	bus     *Bus
	topic   string
	handler Handler

	mu      sync.Mutex
	queue   []Message
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func newLoopSubscriber(bus *Bus, topic string, handler Handler) *loopSubscriber {
	s := &loopSubscriber{
		bus:     bus,
		topic:   topic,
		handler: handler,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *loopSubscriber) enqueue(msg Message) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *loopSubscriber) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.quit:
				return
			default:
			}
			s.handler(msg)
		}
	}
}

func (s *loopSubscriber) stop() {
	s.stopped.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *loopSubscriber) Undeclare() error {
	s.bus.remove(s)
	s.stop()
	return nil
}
