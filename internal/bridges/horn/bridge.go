package horn

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/horn-node/internal/actuator"
	"github.com/nerrad567/horn-node/internal/session"
	"github.com/nerrad567/horn-node/internal/signal"
)

const (
	// defaultPublishTimeout bounds the wait for a status echo to be accepted.
	defaultPublishTimeout = 5 * time.Second

	// recordTimeout bounds a single audit write.
	recordTimeout = 2 * time.Second

	// maxLoggedPayload caps how much of a faulty payload reaches the logs.
	maxLoggedPayload = 32

	// EventChannel is the broadcast channel for actuation events.
	EventChannel = "actuation"
)

// Logger is the structured logger used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ActuationRecorder persists actuation events. Optional.
type ActuationRecorder interface {
	RecordActuation(ctx context.Context, ev Event) error
}

// Telemetry receives actuation samples. Optional.
type Telemetry interface {
	WriteActuation(nodeID string, on bool, verdict string, published bool)
}

// EventBroadcaster fans events out to live listeners. Optional.
type EventBroadcaster interface {
	Broadcast(channel string, payload any)
}

// Event describes one handled command.
type Event struct {
	NodeID    string    `json:"node_id"`
	Topic     string    `json:"topic"`
	Verdict   string    `json:"verdict"`
	On        bool      `json:"on"`
	Actuated  bool      `json:"actuated"`
	Published bool      `json:"published"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats counts handled messages by outcome.
type Stats struct {
	Received        uint64 `json:"received"`
	Actuations      uint64 `json:"actuations"`
	Echoes          uint64 `json:"echoes"`
	Unknown         uint64 `json:"unknown"`
	Malformed       uint64 `json:"malformed"`
	DriverFailures  uint64 `json:"driver_failures"`
	PublishFailures uint64 `json:"publish_failures"`
	RecoveredPanics uint64 `json:"recovered_panics"`
}

type counters struct {
	received        atomic.Uint64
	actuations      atomic.Uint64
	echoes          atomic.Uint64
	unknown         atomic.Uint64
	malformed       atomic.Uint64
	driverFailures  atomic.Uint64
	publishFailures atomic.Uint64
	panics          atomic.Uint64
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Session is the open messaging session. Required.
	Session session.Session

	// Topic is used for both the subscriber and the publisher. Required.
	Topic string

	// Driver is the actuator output. Required.
	Driver actuator.Driver

	// NodeID tags events and telemetry.
	NodeID string

	// PublishTimeout bounds each status echo. Default: 5 seconds.
	PublishTimeout time.Duration

	Logger    Logger
	Recorder  ActuationRecorder
	Telemetry Telemetry
	Events    EventBroadcaster
}

// Bridge applies inbound commands to the actuator and echoes the result.
//
// Thread Safety: All methods are safe for concurrent use. The actuator
// call, the state update and the status publish for one command happen
// under a single lock.
type Bridge struct {
	session        session.Session
	topic          string
	nodeID         string
	driver         actuator.Driver
	publishTimeout time.Duration

	recorder  ActuationRecorder
	telemetry Telemetry
	events    EventBroadcaster
	logger    Logger

	// mu guards on, pub and sub.
	mu  sync.Mutex
	on  bool
	pub session.Publisher
	sub session.Subscriber

	stats counters

	started   atomic.Bool
	stopping  atomic.Bool
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewBridge creates a bridge. Call Start to declare on the session.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("%w: session", ErrMissingDependency)
	}
	if opts.Driver == nil {
		return nil, fmt.Errorf("%w: driver", ErrMissingDependency)
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("%w: topic", ErrMissingDependency)
	}

	timeout := opts.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		session:        opts.Session,
		topic:          opts.Topic,
		nodeID:         opts.NodeID,
		driver:         opts.Driver,
		publishTimeout: timeout,
		recorder:       opts.Recorder,
		telemetry:      opts.Telemetry,
		events:         opts.Events,
		logger:         logger,
		ctx:            ctx,
		ctxCancel:      cancel,
	}, nil
}

// Start declares the publisher and then the subscriber on the topic.
// A declaration failure is returned and leaves nothing declared.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	pub, err := b.session.DeclarePublisher(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("declare publisher on %s: %w", b.topic, err)
	}
	b.mu.Lock()
	b.pub = pub
	b.mu.Unlock()

	sub, err := b.session.DeclareSubscriber(ctx, b.topic, b.handleMessage)
	if err != nil {
		b.mu.Lock()
		b.pub = nil
		b.mu.Unlock()
		pub.Undeclare() //nolint:errcheck // already failing
		return fmt.Errorf("declare subscriber on %s: %w", b.topic, err)
	}
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	b.logger.Info("horn bridge started", "topic", b.topic, "node_id", b.nodeID)
	return nil
}

// Stop undeclares the subscriber and publisher. In-flight commands finish
// first. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopping.Store(true)

		b.mu.Lock()
		sub := b.sub
		b.sub = nil
		b.mu.Unlock()

		// Undeclare outside the lock: it may wait for a handler that needs it.
		if sub != nil {
			if err := sub.Undeclare(); err != nil {
				b.logger.Warn("undeclare subscriber failed", "error", err)
			}
		}

		b.ctxCancel()

		b.mu.Lock()
		pub := b.pub
		b.pub = nil
		b.mu.Unlock()
		if pub != nil {
			if err := pub.Undeclare(); err != nil {
				b.logger.Warn("undeclare publisher failed", "error", err)
			}
		}

		b.logger.Info("horn bridge stopped")
	})
}

// State returns the last state successfully applied to the actuator.
func (b *Bridge) State() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

// Stats returns a snapshot of the message counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Received:        b.stats.received.Load(),
		Actuations:      b.stats.actuations.Load(),
		Echoes:          b.stats.echoes.Load(),
		Unknown:         b.stats.unknown.Load(),
		Malformed:       b.stats.malformed.Load(),
		DriverFailures:  b.stats.driverFailures.Load(),
		PublishFailures: b.stats.publishFailures.Load(),
		RecoveredPanics: b.stats.panics.Load(),
	}
}

// handleMessage is the subscriber callback. msg must not be retained.
func (b *Bridge) handleMessage(msg session.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.stats.panics.Add(1)
			b.logger.Error("panic in horn message handler", "topic", msg.Topic, "panic", r)
		}
	}()

	if b.stopping.Load() {
		return
	}
	b.stats.received.Add(1)

	t := signal.Classify(msg.Attachment)
	d := Decide(t, msg.Payload)

	switch d.Verdict {
	case VerdictEcho:
		b.stats.echoes.Add(1)
		b.logger.Info("ignoring status echo", "topic", msg.Topic)

	case VerdictUnknown:
		b.stats.unknown.Add(1)
		b.logger.Info("ignoring message without a known type", "topic", msg.Topic)

	case VerdictMalformed:
		b.stats.malformed.Add(1)
		b.logger.Warn("received faulty payload value",
			"topic", msg.Topic,
			"payload", quotePayload(msg.Payload),
			"length", len(msg.Payload))
		b.emit(Event{Topic: msg.Topic, Verdict: d.Verdict.String()})

	case VerdictActuate:
		b.apply(msg.Topic, d)
	}
}

// apply drives the actuator and publishes the echo, then reports the outcome.
func (b *Bridge) apply(topic string, d Decision) {
	ev := Event{Topic: topic, Verdict: d.Verdict.String(), On: d.On}

	setErr, pubErr := b.actuateAndEcho(d)
	if setErr != nil {
		b.stats.driverFailures.Add(1)
		b.logger.Error("actuator set failed", "on", d.On, "error", setErr)
		ev.Error = setErr.Error()
		b.emit(ev)
		return
	}

	ev.Actuated = true
	b.stats.actuations.Add(1)
	if pubErr != nil {
		b.stats.publishFailures.Add(1)
		b.logger.Warn("status echo publish failed", "on", d.On, "error", pubErr)
		ev.Error = pubErr.Error()
	} else {
		ev.Published = true
		b.logger.Info("horn actuated", "on", d.On)
	}
	b.emit(ev)
}

// actuateAndEcho holds b.mu across the driver call, the state update and
// the publish. A failed Set leaves the state unchanged and publishes nothing.
func (b *Bridge) actuateAndEcho(d Decision) (setErr, pubErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.driver.Set(d.On); err != nil {
		return err, nil
	}
	b.on = d.On
	return nil, b.publishLocked(d.Status)
}

// publishLocked sends a status echo. Callers hold b.mu.
func (b *Bridge) publishLocked(st Status) error {
	if b.pub == nil {
		return ErrNotStarted
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.publishTimeout)
	defer cancel()
	return b.pub.Put(ctx, st.Payload, st.Attachment)
}

// emit fans an event out to the optional recorder, telemetry and broadcaster.
func (b *Bridge) emit(ev Event) {
	ev.NodeID = b.nodeID
	ev.Timestamp = time.Now().UTC()

	if b.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := b.recorder.RecordActuation(ctx, ev); err != nil {
			b.logger.Warn("recording actuation failed", "error", err)
		}
		cancel()
	}
	if b.telemetry != nil {
		b.telemetry.WriteActuation(b.nodeID, ev.On, ev.Verdict, ev.Published)
	}
	if b.events != nil {
		b.events.Broadcast(EventChannel, ev)
	}
}

func quotePayload(p []byte) string {
	if len(p) > maxLoggedPayload {
		return strconv.Quote(string(p[:maxLoggedPayload])) + "..."
	}
	return strconv.Quote(string(p))
}
