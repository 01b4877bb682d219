package publisher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockTransport is a testify mock of Transport.
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	args := m.Called(ctx, topic, payload)
	return args.Error(0)
}

func (m *mockTransport) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *mockTransport) Close() error {
	return m.Called().Error(0)
}

// recorder collects outcomes.
type recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recorder) ObservePublish(_ context.Context, o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func (r *recorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func newTestGateway(t *testing.T, tr Transport, observers ...Observer) *Gateway {
	t.Helper()
	gw, err := New(Deps{Transport: tr, Backend: "mqtt", Timeout: time.Second, Observers: observers})
	require.NoError(t, err)
	return gw
}

func TestNew(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)

	_, err = New(Deps{Transport: &mockTransport{}, Timeout: -time.Second})
	assert.Error(t, err)

	gw, err := New(Deps{Transport: &mockTransport{}, Backend: "nats", Observers: []Observer{nil}})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, gw.timeout)
	assert.Equal(t, "nats", gw.Backend())
	assert.Empty(t, gw.observers)
}

func TestPublish_Success(t *testing.T) {
	tr := &mockTransport{}
	tr.On("IsConnected").Return(true)
	tr.On("Publish", mock.Anything, "sensors/kitchen/temp", []byte("21.5")).Return(nil).Once()

	rec := &recorder{}
	gw := newTestGateway(t, tr, rec)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	require.NoError(t, gw.Publish(ctx, "sensors/kitchen/temp", []byte("21.5")))

	tr.AssertExpectations(t)

	outcomes := rec.all()
	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.Equal(t, "sensors/kitchen/temp", o.Topic)
	assert.Equal(t, 4, o.PayloadSize)
	assert.Equal(t, ResultPublished, o.Result)
	assert.NoError(t, o.Err)
	assert.Equal(t, "mqtt", o.Backend)
	assert.Equal(t, "req-1", o.RequestID)
	assert.False(t, o.Time.IsZero())
}

func TestPublish_SameMessageTwice(t *testing.T) {
	tr := &mockTransport{}
	tr.On("IsConnected").Return(true)
	tr.On("Publish", mock.Anything, "a/b", []byte("m")).Return(nil).Twice()

	gw := newTestGateway(t, tr)

	require.NoError(t, gw.Publish(context.Background(), "a/b", []byte("m")))
	require.NoError(t, gw.Publish(context.Background(), "a/b", []byte("m")))

	tr.AssertNumberOfCalls(t, "Publish", 2)
}

func TestPublish_InvalidTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
	}{
		{"empty", ""},
		{"plus wildcard", "a/+/b"},
		{"hash wildcard", "a/#"},
		{"nul", "a\x00b"},
		{"too long", strings.Repeat("t", 65536)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &mockTransport{}
			tr.On("IsConnected").Return(true).Maybe()
			rec := &recorder{}
			gw := newTestGateway(t, tr, rec)

			err := gw.Publish(context.Background(), tt.topic, []byte("x"))
			assert.ErrorIs(t, err, ErrInvalidTopic)
			tr.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)

			require.Len(t, rec.all(), 1)
			assert.Equal(t, ResultInvalidTopic, rec.all()[0].Result)
		})
	}
}

func TestPublish_Disconnected(t *testing.T) {
	tr := &mockTransport{}
	tr.On("IsConnected").Return(false)

	rec := &recorder{}
	gw := newTestGateway(t, tr, rec)

	err := gw.Publish(context.Background(), "a/b", []byte("x"))
	assert.ErrorIs(t, err, ErrConnectionUnavailable)
	tr.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, ResultConnectionUnavailable, rec.all()[0].Result)
}

func TestPublish_PayloadTooLarge(t *testing.T) {
	tr := &mockTransport{}
	tr.On("IsConnected").Return(true).Maybe()
	gw := newTestGateway(t, tr)

	err := gw.Publish(context.Background(), "a/b", make([]byte, MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPublishRejected)
	tr.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublish_TransportErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      error
		wantClass Result
	}{
		{"unclassified", errors.New("boom"), ErrPublishRejected, ResultPublishRejected},
		{"rejected", ErrPublishRejected, ErrPublishRejected, ResultPublishRejected},
		{"lost connection", ErrConnectionUnavailable, ErrConnectionUnavailable, ResultConnectionUnavailable},
		{"backend topic rule", ErrInvalidTopic, ErrInvalidTopic, ResultInvalidTopic},
		{"deadline", context.DeadlineExceeded, ErrPublishRejected, ResultPublishRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &mockTransport{}
			tr.On("IsConnected").Return(true)
			tr.On("Publish", mock.Anything, "a/b", []byte("x")).Return(tt.err)

			rec := &recorder{}
			gw := newTestGateway(t, tr, rec)

			err := gw.Publish(context.Background(), "a/b", []byte("x"))
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantClass, rec.all()[0].Result)
		})
	}
}

func TestPublish_TimeoutIsApplied(t *testing.T) {
	tr := &mockTransport{}
	tr.On("IsConnected").Return(true)
	tr.On("Publish", mock.Anything, "a/b", []byte("x")).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok, "transport must receive a deadline")
			assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		}).
		Return(nil)

	gw, err := New(Deps{Transport: tr, Backend: "mqtt", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, gw.Publish(context.Background(), "a/b", []byte("x")))
	tr.AssertExpectations(t)
}

func TestPublish_Concurrent(t *testing.T) {
	tr := &mockTransport{}
	tr.On("IsConnected").Return(true)
	tr.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	rec := &recorder{}
	gw := newTestGateway(t, tr, rec)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gw.Publish(context.Background(), "load/test", []byte("x")))
		}()
	}
	wg.Wait()

	tr.AssertNumberOfCalls(t, "Publish", n)
	assert.Len(t, rec.all(), n)
}

func TestIsConnectedAndClose(t *testing.T) {
	tr := &mockTransport{}
	tr.On("IsConnected").Return(true).Once()
	tr.On("Close").Return(nil).Once()

	gw := newTestGateway(t, tr)
	assert.True(t, gw.IsConnected())
	assert.NoError(t, gw.Close())
	tr.AssertExpectations(t)
}

func TestObserverFunc(t *testing.T) {
	var got Outcome
	obs := ObserverFunc(func(_ context.Context, o Outcome) { got = o })
	obs.ObservePublish(context.Background(), Outcome{Topic: "x"})
	assert.Equal(t, "x", got.Topic)
}

func TestResultOf(t *testing.T) {
	assert.Equal(t, ResultPublished, ResultOf(nil))
	assert.Equal(t, ResultInvalidTopic, ResultOf(ErrInvalidTopic))
	assert.Equal(t, ResultConnectionUnavailable, ResultOf(ErrConnectionUnavailable))
	assert.Equal(t, ResultPublishRejected, ResultOf(ErrPublishRejected))
	assert.Equal(t, ResultPublishRejected, ResultOf(errors.New("other")))
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Equal(t, "abc", RequestIDFromContext(ContextWithRequestID(context.Background(), "abc")))
}
