package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/mqttgate/internal/history"
	"github.com/nerrad567/mqttgate/internal/infrastructure/config"
	"github.com/nerrad567/mqttgate/internal/infrastructure/logging"
	"github.com/nerrad567/mqttgate/internal/metrics"
	"github.com/nerrad567/mqttgate/internal/publisher"
	"github.com/nerrad567/mqttgate/internal/watch"
)

// mockPublisher is a testify mock of the gateway.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

func (m *mockPublisher) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockPublisher) Backend() string {
	return "mqtt"
}

// fakeHistory is an in-memory history.Repository.
type fakeHistory struct {
	lastFilter history.Filter
	result     *history.ListResult
	counts     map[string]int
	err        error
}

func (f *fakeHistory) Create(_ context.Context, _ *history.Record) error { return f.err }

func (f *fakeHistory) List(_ context.Context, filter history.Filter) (*history.ListResult, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeHistory) CountByOutcome(_ context.Context) (map[string]int, error) {
	return f.counts, f.err
}

func testDeps(pub Publisher) Deps {
	return Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:    logging.Discard(),
		Publisher: pub,
		Version:   "test",
	}
}

func testServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	srv, err := New(deps)
	require.NoError(t, err)
	return srv
}

// do sends a request through the full router and returns the recorder.
func do(t *testing.T, srv *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var e Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Deps{Publisher: &mockPublisher{}})
	assert.Error(t, err)

	_, err = New(Deps{Logger: logging.Discard()})
	assert.Error(t, err)

	_, err = New(testDeps(&mockPublisher{}))
	assert.NoError(t, err)
}

func TestStartAndClose(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("IsConnected").Return(true)
	srv := testServer(t, testDeps(pub))

	assert.Error(t, srv.HealthCheck(context.Background()))
	assert.Empty(t, srv.Addr())

	require.NoError(t, srv.Start(context.Background()))
	assert.Error(t, srv.Start(context.Background()), "second Start must fail")
	assert.NoError(t, srv.HealthCheck(context.Background()))

	addr := srv.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Close())
}

func TestStart_PortInUse(t *testing.T) {
	pub := &mockPublisher{}
	first := testServer(t, testDeps(pub))
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(func() { _ = first.Close() })

	_, port, ok := strings.Cut(first.Addr(), ":")
	require.True(t, ok)

	deps := testDeps(pub)
	_, err := fmt.Sscanf(port, "%d", &deps.Config.Port)
	require.NoError(t, err)

	second := testServer(t, deps)
	assert.Error(t, second.Start(context.Background()))
}

func TestClose_NotStarted(t *testing.T) {
	srv := testServer(t, testDeps(&mockPublisher{}))
	assert.NoError(t, srv.Close())
}

func TestHealthCheck_CancelledContext(t *testing.T) {
	srv := testServer(t, testDeps(&mockPublisher{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, srv.HealthCheck(ctx), context.Canceled)
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		wantStatus int
		wantBody   string
	}{
		{"connected", true, http.StatusOK, "ok"},
		{"disconnected", false, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			pub.On("IsConnected").Return(tt.connected)
			srv := testServer(t, testDeps(pub))

			rec := do(t, srv, http.MethodGet, "/api/v1/health", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["status"])
			assert.Equal(t, "mqtt", body["backend"])
			assert.Equal(t, "test", body["version"])
		})
	}
}

func TestHandleStatus(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("IsConnected").Return(true)

	hist := &fakeHistory{counts: map[string]int{"published": 3, "publish_rejected": 1}}
	hub := watch.NewHub(config.WebSocketConfig{}, logging.Discard())

	deps := testDeps(pub)
	deps.History = hist
	deps.Watch = hub
	srv := testServer(t, deps)

	rec := do(t, srv, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Version string `json:"version"`
		Broker  struct {
			Backend   string `json:"backend"`
			Connected bool   `json:"connected"`
		} `json:"broker"`
		History struct {
			Enabled  bool           `json:"enabled"`
			Outcomes map[string]int `json:"outcomes"`
		} `json:"history"`
		Watch struct {
			Enabled bool `json:"enabled"`
			Clients int  `json:"clients"`
		} `json:"watch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "test", body.Version)
	assert.Equal(t, "mqtt", body.Broker.Backend)
	assert.True(t, body.Broker.Connected)
	assert.True(t, body.History.Enabled)
	assert.Equal(t, 3, body.History.Outcomes["published"])
	assert.True(t, body.Watch.Enabled)
	assert.Equal(t, 0, body.Watch.Clients)
}

func TestHandleStatus_OptionalPartsDisabled(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("IsConnected").Return(false)
	srv := testServer(t, testDeps(pub))

	rec := do(t, srv, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Broker struct {
			Connected bool `json:"connected"`
		} `json:"broker"`
		History struct {
			Enabled  bool           `json:"enabled"`
			Outcomes map[string]int `json:"outcomes"`
		} `json:"history"`
		Watch struct {
			Enabled bool `json:"enabled"`
		} `json:"watch"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.History.Enabled)
	assert.Empty(t, body.History.Outcomes)
	assert.False(t, body.Watch.Enabled)
	assert.False(t, body.Broker.Connected)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.ObservePublish(context.Background(), publisher.Outcome{
		Backend:     "mqtt",
		Result:      publisher.ResultPublished,
		PayloadSize: 5,
		Duration:    time.Millisecond,
	})

	deps := testDeps(&mockPublisher{})
	deps.Gatherer = reg
	srv := testServer(t, deps)

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mqttgate_publish_total{backend="mqtt",outcome="published"} 1`)
}

func TestMetricsEndpoint_DisabledWithoutGatherer(t *testing.T) {
	srv := testServer(t, testDeps(&mockPublisher{}))
	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatchEndpoint_UpgradesThroughMiddleware(t *testing.T) {
	hub := watch.NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())

	deps := testDeps(&mockPublisher{})
	deps.Watch = hub
	srv := testServer(t, deps)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(watch.Message{
		Type:    watch.TypeSubscribe,
		ID:      "s1",
		Payload: watch.SubscribePayload{Channels: []string{"sensors/#"}},
	}))

	var resp watch.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, watch.TypeResponse, resp.Type)

	require.NoError(t, hub.Relay("sensors/hall/temp", []byte("19.0")))

	var msg watch.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "sensors/hall/temp", msg.Topic)
	assert.Equal(t, "19.0", msg.Payload)
}

func TestWatchEndpoint_DisabledWithoutHub(t *testing.T) {
	srv := testServer(t, testDeps(&mockPublisher{}))
	rec := do(t, srv, http.MethodGet, "/api/v1/watch", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(t, testDeps(&mockPublisher{}))
	rec := do(t, srv, http.MethodGet, "/send/only-topic", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(string(body), sendResponsePrefix))
}

var errBoom = errors.New("boom")
