package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/horn-node/internal/audit"
	"github.com/nerrad567/horn-node/internal/bridges/horn"
	"github.com/nerrad567/horn-node/internal/infrastructure/config"
	"github.com/nerrad567/horn-node/internal/infrastructure/logging"
)

type mockStatus struct {
	health horn.Health
}

func (m *mockStatus) Snapshot(context.Context) horn.Health {
	return m.health
}

type mockAudit struct {
	result *audit.ListResult
	err    error
	filter audit.Filter
}

func (m *mockAudit) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	m.filter = filter
	return m.result, m.err
}

func testConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    0,
		Timeouts: config.APITimeoutConfig{
			Read:  5,
			Write: 5,
			Idle:  5,
		},
	}
}

func testServer(t *testing.T, deps Deps) *Server {
	t.Helper()

	deps.Config = testConfig()
	deps.Logger = logging.Discard()
	if deps.Version == "" {
		deps.Version = "test"
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func serve(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func TestNew_RequiresLogger(t *testing.T) {
	if _, err := New(Deps{Config: testConfig()}); err == nil {
		t.Error("New() without logger should fail")
	}
}

func TestHealth(t *testing.T) {
	w := serve(t, testServer(t, Deps{}), "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("resp = %v", resp)
	}
}

func TestRequestID(t *testing.T) {
	srv := testServer(t, Deps{})

	w := serve(t, srv, "/api/v1/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestNotFound(t *testing.T) {
	w := serve(t, testServer(t, Deps{}), "/api/v1/devices")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestReadOnly(t *testing.T) {
	srv := testServer(t, Deps{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestStatus(t *testing.T) {
	status := &mockStatus{health: horn.Health{
		NodeID:           "horn-1",
		Status:           horn.HealthHealthy,
		LinkBringupState: "Connected",
		BusConnected:     true,
		ActuatorOn:       true,
	}}
	w := serve(t, testServer(t, Deps{Status: status}), "/api/v1/status")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got horn.Health
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.NodeID != "horn-1" || !got.ActuatorOn || got.LinkBringupState != "Connected" {
		t.Errorf("status body = %+v", got)
	}
}

func TestStatus_NotConfigured(t *testing.T) {
	w := serve(t, testServer(t, Deps{}), "/api/v1/status")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestAudit(t *testing.T) {
	repo := &mockAudit{result: &audit.ListResult{
		Entries: []audit.Entry{{ID: "act-1", Verdict: "actuate", On: true}},
		Total:   1,
		Limit:   5,
	}}
	w := serve(t, testServer(t, Deps{Audit: repo}), "/api/v1/audit?limit=5&offset=2&verdict=actuate")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if repo.filter != (audit.Filter{Verdict: "actuate", Limit: 5, Offset: 2}) {
		t.Errorf("filter = %+v", repo.filter)
	}

	var got audit.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0].ID != "act-1" {
		t.Errorf("entries = %+v", got.Entries)
	}
}

func TestAudit_BadQuery(t *testing.T) {
	srv := testServer(t, Deps{Audit: &mockAudit{}})

	for _, target := range []string{"/api/v1/audit?limit=abc", "/api/v1/audit?limit=-1", "/api/v1/audit?offset=x"} {
		if w := serve(t, srv, target); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", target, w.Code)
		}
	}
}

func TestAudit_RepositoryError(t *testing.T) {
	w := serve(t, testServer(t, Deps{Audit: &mockAudit{err: errors.New("disk I/O error")}}), "/api/v1/audit")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAudit_NotConfigured(t *testing.T) {
	w := serve(t, testServer(t, Deps{}), "/api/v1/audit")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(logging.Discard())

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"actuation": {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"health": {}},
	}
	hub.Register(client)
	hub.Register(other)

	hub.Broadcast("actuation", map[string]any{"on": true})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent || wsMsg.EventType != "actuation" {
			t.Errorf("message = %+v", wsMsg)
		}
	default:
		t.Error("subscribed client received nothing")
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	default:
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(logging.Discard())
	client := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{}}

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	// A closed send channel must not panic the broadcaster.
	client.trySend([]byte("late"))
}

func startServer(t *testing.T, deps Deps) *Server {
	t.Helper()

	srv := testServer(t, deps)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup
	return srv
}

func TestServer_StartAndClose(t *testing.T) {
	srv := testServer(t, Deps{})

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	addr := srv.Addr()
	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if _, err := http.Get("http://" + addr + "/api/v1/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestServer_StartBindFailure(t *testing.T) {
	first := startServer(t, Deps{})

	_, portStr, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}
	cfg := testConfig()
	cfg.Port = port

	second, err := New(Deps{Config: cfg, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Close() //nolint:errcheck // Test cleanup
		t.Error("Start() on a taken port should fail")
	}
}

func dialWS(t *testing.T, srv *Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws://" + srv.Addr() + "/api/v1/ws" + query
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() }) //nolint:errcheck // Test cleanup
	return ws
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_SubscribeAndBroadcast(t *testing.T) {
	srv := startServer(t, Deps{})
	ws := dialWS(t, srv, "")
	waitForClients(t, srv.Hub(), 1)

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{"actuation"}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Errorf("subscribe response = %+v", resp)
	}

	srv.Hub().Broadcast("actuation", horn.Event{NodeID: "horn-1", Verdict: "actuate", On: true})

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.Type != WSTypeEvent || resp.EventType != "actuation" {
		t.Errorf("broadcast = %+v", resp)
	}
}

func TestWebSocket_QuerySubscription(t *testing.T) {
	srv := startServer(t, Deps{})
	ws := dialWS(t, srv, "?channels=actuation")
	waitForClients(t, srv.Hub(), 1)

	srv.Hub().Broadcast("actuation", map[string]bool{"on": false})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.EventType != "actuation" {
		t.Errorf("event_type = %q, want actuation", resp.EventType)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	srv := startServer(t, Deps{})
	ws := dialWS(t, srv, "")

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var resp WSMessage

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "ping-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong || resp.ID != "ping-1" {
		t.Errorf("pong = %+v", resp)
	}

	if err := ws.WriteJSON(WSMessage{Type: "command", ID: "c-1"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if resp.Type != WSTypeError {
		t.Errorf("unknown type response = %+v, want error", resp)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write invalid: %v", err)
	}
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if resp.Type != WSTypeError {
		t.Errorf("invalid JSON response = %+v, want error", resp)
	}
}
