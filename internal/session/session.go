package session

import (
	"context"
	"fmt"
	"strings"
)

// Attachment is out-of-band metadata carried alongside a payload.
// A nil Attachment means the message had none.
type Attachment map[string][]byte

// Message is one inbound delivery.
//
// Payload and Attachment are only valid for the duration of the handler
// call; copy anything that must outlive it.
type Message struct {
	Topic      string
	Payload    []byte
	Attachment Attachment
}

// Handler receives inbound messages. Calls may overlap.
type Handler func(msg Message)

// Publisher puts messages on one topic.
type Publisher interface {
	Put(ctx context.Context, payload []byte, attachment Attachment) error
	Undeclare() error
}

// Subscriber is a declared subscription.
type Subscriber interface {
	Undeclare() error
}

// Session is a connection to the messaging bus.
type Session interface {
	DeclarePublisher(ctx context.Context, topic string) (Publisher, error)
	DeclareSubscriber(ctx context.Context, topic string, handler Handler) (Subscriber, error)
	Close() error
}

// HealthChecker is implemented by sessions that can report transport health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Mode is the role the node plays on the bus.
type Mode int

const (
	// ModeClient connects through a broker or router.
	ModeClient Mode = iota
	// ModePeer participates as a peer and keeps its broker session across reconnects.
	ModePeer
)

// ParseMode parses "client" or "peer".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return ModeClient, nil
	case "peer":
		return ModePeer, nil
	default:
		return ModeClient, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

func (m Mode) String() string {
	if m == ModePeer {
		return "peer"
	}
	return "client"
}

// Config is the transport-neutral session configuration.
type Config struct {
	Mode Mode
	// Connect is a validated protocol/host:port endpoint, or "" when absent.
	Connect string
}

// HasConnect reports whether a connect endpoint is configured.
func (c Config) HasConnect() bool {
	return c.Connect != ""
}

func copyAttachment(a Attachment) Attachment {
	if a == nil {
		return nil
	}
	out := make(Attachment, len(a))
	for k, v := range a {
		out[k] = append([]byte(nil), v...)
	}
	return out
}
