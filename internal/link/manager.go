package link

import (
	"context"
	"errors"
	"sync"
	"time"
)

// connectErrorPause spaces out retries when Connect fails without waiting.
const connectErrorPause = 50 * time.Millisecond

// Logger defines the logging interface for the link package.
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

// Options configures a Manager.
type Options struct {
	// MaxRetry caps reconnect requests after disconnect events.
	MaxRetry int
	Policy   RetryPolicy
	Logger   Logger

	// OnStateChange, if set, is called on every transition from the
	// Establish goroutine.
	OnStateChange func(from, to ConnectionState)
}

// Manager owns the connection state and retry counter for one station.
//
// Thread Safety: Establish must not be called concurrently with itself;
// accessors are safe from any goroutine.
type Manager struct {
	station       Station
	maxRetry      int
	policy        RetryPolicy
	logger        Logger
	onStateChange func(from, to ConnectionState)

	mu       sync.RWMutex
	state    ConnectionState
	retries  int
	attempts int
	address  string
}

// NewManager creates a Manager in StateDisconnected.
func NewManager(station Station, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.MaxRetry < 0 {
		opts.MaxRetry = 0
	}
	return &Manager{
		station:       station,
		maxRetry:      opts.MaxRetry,
		policy:        opts.Policy,
		logger:        opts.Logger,
		onStateChange: opts.OnStateChange,
		state:         StateDisconnected,
	}
}

// Establish brings the link up, blocking until it is connected, the retry
// budget is exhausted under PolicyGiveUp, or the wait ends.
//
// A positive timeout bounds the wait; otherwise only ctx does. Cancellation
// and deadline both report ResultTimedOut. The station subscription is
// removed before Establish returns.
func (m *Manager) Establish(ctx context.Context, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	events, unsubscribe := m.station.Subscribe()
	defer unsubscribe()

	m.mu.Lock()
	m.retries = 0
	m.attempts = 0
	m.address = ""
	m.mu.Unlock()
	m.setState(StateDisconnected)

	m.logger.Info("bringing link up", "max_retry", m.maxRetry, "policy", m.policy.String())

	if err := m.station.Start(ctx); err != nil {
		m.logger.Error("station start failed", "error", err)
		m.setState(StateFailed)
		return ResultFailed
	}

	var pending []Event
	for {
		if err := ctx.Err(); err != nil {
			m.logger.Warn("link bring-up did not complete",
				"state", m.State().String(),
				"attempts", m.Attempts(),
				"error", err,
			)
			return ResultTimedOut
		}

		var ev Event
		if len(pending) > 0 {
			ev, pending = pending[0], pending[1:]
		} else {
			select {
			case <-ctx.Done():
				m.logger.Warn("link bring-up did not complete",
					"state", m.State().String(),
					"attempts", m.Attempts(),
					"error", ctx.Err(),
				)
				return ResultTimedOut
			case e, ok := <-events:
				if !ok {
					m.logger.Error("station event stream closed")
					m.setState(StateFailed)
					return ResultFailed
				}
				ev = e
			}
		}

		result, done, synthetic := m.handle(ctx, ev)
		if synthetic != nil {
			pending = append(pending, *synthetic)
		}
		if done {
			return result
		}
	}
}

// handle applies one event. A connect request that fails synchronously is
// returned as a synthetic disconnect so the retry accounting still applies.
// The synthetic event is issued connectErrorPause after the failure.
func (m *Manager) handle(ctx context.Context, ev Event) (Result, bool, *Event) {
	switch ev.Kind {
	case EventStationStart:
		if m.State() != StateDisconnected {
			return 0, false, nil
		}
		m.setState(StateConnecting)
		return 0, false, m.connect(ctx)

	case EventDisconnected:
		if m.State() != StateConnecting {
			return 0, false, nil
		}

		m.mu.Lock()
		retries := m.retries
		canRetry := retries < m.maxRetry
		if canRetry {
			m.retries++
			retries = m.retries
		}
		m.mu.Unlock()

		if canRetry {
			m.logger.Info("link disconnected, retrying",
				"reason", ev.Reason,
				"retry", retries,
				"max_retry", m.maxRetry,
			)
			return 0, false, m.connect(ctx)
		}

		if m.policy == PolicyGiveUp {
			m.logger.Error("link connect failed, retry budget exhausted",
				"reason", ev.Reason,
				"retries", retries,
			)
			m.setState(StateFailed)
			return ResultFailed, true, nil
		}

		m.logger.Warn("link retry budget exhausted, continuing",
			"reason", ev.Reason,
			"retries", retries,
		)
		return 0, false, m.connect(ctx)

	case EventGotAddress:
		m.mu.Lock()
		m.retries = 0
		m.address = ev.Address
		m.mu.Unlock()
		m.setState(StateConnected)
		m.logger.Info("link up", "address", ev.Address, "attempts", m.Attempts())
		return ResultConnected, true, nil
	}

	return 0, false, nil
}

func (m *Manager) connect(ctx context.Context) *Event {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()

	if err := m.station.Connect(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		m.logger.Warn("connect request failed", "error", err)

		pause := time.NewTimer(connectErrorPause)
		defer pause.Stop()
		select {
		case <-ctx.Done():
			return nil
		case <-pause.C:
		}
		return &Event{Kind: EventDisconnected, Reason: err.Error()}
	}
	return nil
}

func (m *Manager) setState(to ConnectionState) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if from == to {
		return
	}
	m.logger.Debug("link state changed", "from", from.String(), "to", to.String())
	if m.onStateChange != nil {
		m.onStateChange(from, to)
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Retries returns the current retry counter.
func (m *Manager) Retries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retries
}

// Attempts returns the number of connect requests issued, including the first.
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// Address returns the address acquired by the last successful bring-up.
func (m *Manager) Address() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.address
}
