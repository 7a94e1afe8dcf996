package actuator

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/horn-node/internal/infrastructure/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestOpen_Drivers(t *testing.T) {
	d, err := Open(config.ActuatorConfig{Driver: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, d)
	require.NoError(t, d.Close())

	d, err = Open(config.ActuatorConfig{Driver: "console", Interval: 10}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Console{}, d)
	require.NoError(t, d.Close())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.ActuatorConfig{Driver: "relay"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDriver))
}

func TestOpen_GPIOMissingChip(t *testing.T) {
	_, err := Open(config.ActuatorConfig{Driver: "gpio", Chip: "gpiochip-does-not-exist", Line: 25}, nil)
	assert.Error(t, err)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	assert.False(t, m.On())

	require.NoError(t, m.Set(true))
	require.NoError(t, m.Set(false))
	require.NoError(t, m.Set(true))

	assert.True(t, m.On())
	assert.Equal(t, []bool{true, false, true}, m.History())
}

func TestMemory_FailWith(t *testing.T) {
	m := NewMemory()
	boom := errors.New("line busy")
	m.FailWith(boom)

	assert.ErrorIs(t, m.Set(true), boom)
	assert.False(t, m.On())
	assert.Empty(t, m.History())

	m.FailWith(nil)
	require.NoError(t, m.Set(true))
	assert.True(t, m.On())
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Set(true), ErrClosed)
}

func TestConsole_Indicator(t *testing.T) {
	var out syncBuffer
	c := NewConsole(&out, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "-")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Set(true))
	assert.True(t, c.On())

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "!")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Set(false), ErrClosed)
	// Close is idempotent.
	require.NoError(t, c.Close())
}
