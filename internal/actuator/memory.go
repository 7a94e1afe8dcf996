package actuator

import "sync"

// Memory records output transitions in memory.
type Memory struct {
	mu      sync.Mutex
	on      bool
	history []bool
	failErr error
	closed  bool
}

// NewMemory returns a Memory driver with the output off.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Set(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.failErr != nil {
		return m.failErr
	}
	m.on = on
	m.history = append(m.history, on)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// On reports the current output state.
func (m *Memory) On() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on
}

// History returns every value passed to a successful Set, oldest first.
func (m *Memory) History() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.history))
	copy(out, m.history)
	return out
}

// FailWith makes subsequent Set calls return err. Pass nil to clear.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}
