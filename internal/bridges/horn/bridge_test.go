package horn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/horn-node/internal/actuator"
	"github.com/nerrad567/horn-node/internal/session"
	"github.com/nerrad567/horn-node/internal/signal"
)

const testTopic = "Vehicle/Body/Horn/IsActive"

var (
	targetValue  = session.Attachment{signal.TypeKey: []byte(signal.TagTargetValue)}
	currentValue = session.Attachment{signal.TypeKey: []byte(signal.TagCurrentValue)}
)

// MockSession implements session.Session, delivering synchronously.
type MockSession struct {
	mu         sync.Mutex
	handler    session.Handler
	published  []mockPut
	putErr     error
	putPanic   bool
	subErr     error
	pubErr     error
	undeclared int
}

type mockPut struct {
	Payload    []byte
	Attachment session.Attachment
}

func (m *MockSession) DeclarePublisher(_ context.Context, _ string) (session.Publisher, error) {
	if m.pubErr != nil {
		return nil, m.pubErr
	}
	return &mockPublisher{m: m}, nil
}

func (m *MockSession) DeclareSubscriber(_ context.Context, _ string, h session.Handler) (session.Subscriber, error) {
	if m.subErr != nil {
		return nil, m.subErr
	}
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
	return &mockSubscriber{m: m}, nil
}

func (m *MockSession) Close() error { return nil }

// SimulateMessage delivers a message as the transport would.
func (m *MockSession) SimulateMessage(payload string, attachment session.Attachment) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(session.Message{Topic: testTopic, Payload: []byte(payload), Attachment: attachment})
	}
}

func (m *MockSession) GetPublished() []mockPut {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockPut(nil), m.published...)
}

func (m *MockSession) Undeclared() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.undeclared
}

type mockPublisher struct{ m *MockSession }

func (p *mockPublisher) Put(_ context.Context, payload []byte, attachment session.Attachment) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if p.m.putPanic {
		panic("publisher exploded")
	}
	if p.m.putErr != nil {
		return p.m.putErr
	}
	p.m.published = append(p.m.published, mockPut{Payload: payload, Attachment: attachment})
	return nil
}

func (p *mockPublisher) Undeclare() error {
	p.m.mu.Lock()
	p.m.undeclared++
	p.m.mu.Unlock()
	return nil
}

type mockSubscriber struct{ m *MockSession }

func (s *mockSubscriber) Undeclare() error {
	s.m.mu.Lock()
	s.m.handler = nil
	s.m.undeclared++
	s.m.mu.Unlock()
	return nil
}

// mockRecorder collects every emitted event.
type mockRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *mockRecorder) RecordActuation(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *mockRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newMockBridge(t *testing.T) (*Bridge, *MockSession, *actuator.Memory, *mockRecorder) {
	t.Helper()
	sess := &MockSession{}
	drv := actuator.NewMemory()
	rec := &mockRecorder{}

	b, err := NewBridge(BridgeOptions{
		Session:  sess,
		Topic:    testTopic,
		Driver:   drv,
		NodeID:   "horn-test",
		Recorder: rec,
	})
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	return b, sess, drv, rec
}

func TestNewBridge_RequiresDependencies(t *testing.T) {
	drv := actuator.NewMemory()
	sess := &MockSession{}

	_, err := NewBridge(BridgeOptions{Topic: testTopic, Driver: drv})
	assert.ErrorIs(t, err, ErrMissingDependency)
	_, err = NewBridge(BridgeOptions{Session: sess, Topic: testTopic})
	assert.ErrorIs(t, err, ErrMissingDependency)
	_, err = NewBridge(BridgeOptions{Session: sess, Driver: drv})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestBridge_TargetTrueActuatesAndEchoesOnce(t *testing.T) {
	b, sess, drv, rec := newMockBridge(t)

	sess.SimulateMessage("true", targetValue)

	assert.True(t, drv.On())
	assert.True(t, b.State())
	pubs := sess.GetPublished()
	require.Len(t, pubs, 1)
	assert.Equal(t, "true", string(pubs[0].Payload))
	assert.Equal(t, "currentValue", string(pubs[0].Attachment[signal.TypeKey]))

	events := rec.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Actuated)
	assert.True(t, events[0].Published)
	assert.Equal(t, "horn-test", events[0].NodeID)
}

func TestBridge_TargetFalseActuatesAndEchoesOnce(t *testing.T) {
	b, sess, drv, _ := newMockBridge(t)

	sess.SimulateMessage("true", targetValue)
	sess.SimulateMessage("false", targetValue)

	assert.False(t, drv.On())
	assert.False(t, b.State())
	assert.Equal(t, []bool{true, false}, drv.History())
	pubs := sess.GetPublished()
	require.Len(t, pubs, 2)
	assert.Equal(t, "false", string(pubs[1].Payload))
}

func TestBridge_MalformedPayloadDoesNothing(t *testing.T) {
	for _, payload := range []string{"maybe", "TRUE", "", "true\n", "1", "{\"value\":true}"} {
		t.Run(payload, func(t *testing.T) {
			b, sess, drv, rec := newMockBridge(t)

			sess.SimulateMessage(payload, targetValue)

			assert.False(t, b.State())
			assert.Empty(t, drv.History())
			assert.Empty(t, sess.GetPublished())
			assert.Equal(t, uint64(1), b.Stats().Malformed)

			events := rec.Events()
			require.Len(t, events, 1)
			assert.Equal(t, "malformed", events[0].Verdict)
			assert.False(t, events[0].Actuated)
		})
	}
}

func TestBridge_CurrentValueAndUnknownAreIgnored(t *testing.T) {
	b, sess, drv, rec := newMockBridge(t)
	sess.SimulateMessage("true", targetValue)
	require.Len(t, sess.GetPublished(), 1)

	attachments := []session.Attachment{
		currentValue,
		nil,
		{},
		{"type": []byte("TargetValue")},
		{"kind": []byte("targetValue")},
		{"type": make([]byte, 51)},
	}
	for i := 0; i < 3; i++ {
		for _, a := range attachments {
			sess.SimulateMessage("false", a)
			sess.SimulateMessage("garbage", a)
		}
	}

	assert.True(t, b.State())
	assert.Equal(t, []bool{true}, drv.History())
	assert.Len(t, sess.GetPublished(), 1)
	assert.Len(t, rec.Events(), 1)

	stats := b.Stats()
	assert.Equal(t, uint64(6), stats.Echoes)
	assert.Equal(t, uint64(30), stats.Unknown)
}

// recordingLogger keeps the messages logged at each level.
type recordingLogger struct {
	mu    sync.Mutex
	lines map[string][]string
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lines == nil {
		l.lines = make(map[string][]string)
	}
	l.lines[level] = append(l.lines[level], msg)
}

func (l *recordingLogger) at(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines[level]...)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func TestBridge_IgnoredMessagesLoggedAtInfo(t *testing.T) {
	sess := &MockSession{}
	logger := &recordingLogger{}
	b, err := NewBridge(BridgeOptions{
		Session: sess,
		Topic:   testTopic,
		Driver:  actuator.NewMemory(),
		Logger:  logger,
	})
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)

	sess.SimulateMessage("true", currentValue)
	sess.SimulateMessage("true", nil)

	info := logger.at("info")
	assert.Contains(t, info, "ignoring status echo")
	assert.Contains(t, info, "ignoring message without a known type")
	assert.NotContains(t, logger.at("debug"), "ignoring status echo")
}

func TestBridge_NoAttachmentDoesNothing(t *testing.T) {
	b, sess, drv, _ := newMockBridge(t)

	sess.SimulateMessage("true", nil)

	assert.False(t, b.State())
	assert.Empty(t, drv.History())
	assert.Empty(t, sess.GetPublished())
}

func TestBridge_PublishFailureKeepsActuation(t *testing.T) {
	b, sess, drv, rec := newMockBridge(t)
	sess.putErr = errors.New("broker gone")

	sess.SimulateMessage("true", targetValue)

	assert.True(t, drv.On())
	assert.True(t, b.State())
	assert.Equal(t, uint64(1), b.Stats().PublishFailures)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Actuated)
	assert.False(t, events[0].Published)
	assert.Contains(t, events[0].Error, "broker gone")
}

func TestBridge_DriverFailureSkipsStateAndEcho(t *testing.T) {
	b, sess, drv, rec := newMockBridge(t)
	drv.FailWith(errors.New("line busy"))

	sess.SimulateMessage("true", targetValue)

	assert.False(t, b.State())
	assert.Empty(t, sess.GetPublished())
	assert.Equal(t, uint64(1), b.Stats().DriverFailures)
	assert.Equal(t, uint64(0), b.Stats().Actuations)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.False(t, events[0].Actuated)
	assert.Contains(t, events[0].Error, "line busy")
}

func TestBridge_PanicIsRecoveredAndLockReleased(t *testing.T) {
	b, sess, drv, _ := newMockBridge(t)
	sess.mu.Lock()
	sess.putPanic = true
	sess.mu.Unlock()

	assert.NotPanics(t, func() { sess.SimulateMessage("true", targetValue) })
	assert.Equal(t, uint64(1), b.Stats().RecoveredPanics)

	sess.mu.Lock()
	sess.putPanic = false
	sess.mu.Unlock()

	done := make(chan struct{})
	go func() {
		sess.SimulateMessage("false", targetValue)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bridge lock still held after recovered panic")
	}
	assert.False(t, drv.On())
	assert.Len(t, sess.GetPublished(), 1)
}

func TestBridge_ConcurrentCommandsSerialise(t *testing.T) {
	b, sess, drv, _ := newMockBridge(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			payload := "false"
			if on {
				payload = "true"
			}
			sess.SimulateMessage(payload, targetValue)
		}(i%2 == 0)
	}
	wg.Wait()

	history := drv.History()
	pubs := sess.GetPublished()
	require.Len(t, history, n)
	require.Len(t, pubs, n)
	// Each echo reports the state set immediately before it.
	for i := 0; i < n; i++ {
		want := "false"
		if history[i] {
			want = "true"
		}
		assert.Equal(t, want, string(pubs[i].Payload), "echo %d", i)
	}
	assert.Equal(t, history[n-1], b.State())
}

func TestBridge_StartFailures(t *testing.T) {
	t.Run("publisher", func(t *testing.T) {
		sess := &MockSession{pubErr: errors.New("no route")}
		b, err := NewBridge(BridgeOptions{Session: sess, Topic: testTopic, Driver: actuator.NewMemory()})
		require.NoError(t, err)
		assert.ErrorContains(t, b.Start(context.Background()), "declare publisher")
	})

	t.Run("subscriber", func(t *testing.T) {
		sess := &MockSession{subErr: errors.New("denied")}
		b, err := NewBridge(BridgeOptions{Session: sess, Topic: testTopic, Driver: actuator.NewMemory()})
		require.NoError(t, err)
		assert.ErrorContains(t, b.Start(context.Background()), "declare subscriber")
		assert.Equal(t, 1, sess.Undeclared(), "publisher must be undeclared")
	})

	t.Run("twice", func(t *testing.T) {
		b, _, _, _ := newMockBridge(t)
		assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyStarted)
	})
}

func TestBridge_StopUndeclaresAndIgnoresLateMessages(t *testing.T) {
	b, sess, drv, _ := newMockBridge(t)
	h := sess.handler

	b.Stop()
	b.Stop()

	assert.Equal(t, 2, sess.Undeclared())
	h(session.Message{Topic: testTopic, Payload: []byte("true"), Attachment: targetValue})
	assert.Empty(t, drv.History())
}

// End-to-end over the loopback bus: the node receives its own echo.
func TestBridge_Loopback(t *testing.T) {
	bus := session.NewBus()
	defer bus.Close()
	ctx := context.Background()

	drv := actuator.NewMemory()
	b, err := NewBridge(BridgeOptions{Session: bus.Session(), Topic: testTopic, Driver: drv})
	require.NoError(t, err)
	require.NoError(t, b.Start(ctx))
	defer b.Stop()

	peer, err := bus.Session().DeclarePublisher(ctx, testTopic)
	require.NoError(t, err)

	echoes := func() []session.Message {
		var out []session.Message
		for _, m := range bus.Published(testTopic) {
			if signal.Classify(m.Attachment) == signal.CurrentValue {
				out = append(out, m)
			}
		}
		return out
	}

	t.Run("target true", func(t *testing.T) {
		require.NoError(t, peer.Put(ctx, []byte("true"), targetValue))
		require.Eventually(t, func() bool { return b.Stats().Echoes == 1 }, 2*time.Second, 5*time.Millisecond)

		assert.True(t, drv.On())
		got := echoes()
		require.Len(t, got, 1)
		assert.Equal(t, "true", string(got[0].Payload))
	})

	t.Run("target maybe", func(t *testing.T) {
		require.NoError(t, peer.Put(ctx, []byte("maybe"), targetValue))
		require.Eventually(t, func() bool { return b.Stats().Malformed == 1 }, 2*time.Second, 5*time.Millisecond)

		assert.True(t, drv.On())
		assert.Len(t, echoes(), 1)
	})

	t.Run("no attachment", func(t *testing.T) {
		require.NoError(t, peer.Put(ctx, []byte("false"), nil))
		require.Eventually(t, func() bool { return b.Stats().Unknown == 1 }, 2*time.Second, 5*time.Millisecond)

		assert.True(t, drv.On())
		assert.Len(t, echoes(), 1)
	})
}
