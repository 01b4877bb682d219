package mqtt

import (
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a paho Token that is either already complete or never completes.
type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

// publishCall records one Publish invocation.
type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  any
}

// fakePaho implements pahomqtt.Client in memory.
type fakePaho struct {
	mu sync.Mutex

	opts       *pahomqtt.ClientOptions
	connected  bool
	connectErr error
	hangOnConn bool
	publishErr error
	hangOnPub  bool
	subErr     error

	publishes     []publishCall
	subscriptions map[string]pahomqtt.MessageHandler
	disconnected  bool
}

func newFakePaho() *fakePaho {
	return &fakePaho{subscriptions: make(map[string]pahomqtt.MessageHandler)}
}

// install swaps newPahoClient for the duration of the test.
func (f *fakePaho) install(t interface{ Cleanup(func()) }) {
	prev := newPahoClient
	newPahoClient = func(o *pahomqtt.ClientOptions) pahomqtt.Client {
		f.mu.Lock()
		f.opts = o
		f.mu.Unlock()
		return f
	}
	t.Cleanup(func() { newPahoClient = prev })
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePaho) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hangOnConn {
		return pendingToken()
	}
	if f.connectErr != nil {
		return completedToken(f.connectErr)
	}
	f.connected = true
	return completedToken(nil)
}

func (f *fakePaho) Disconnect(_ uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, publishCall{topic: topic, qos: qos, retained: retained, payload: payload})
	if f.hangOnPub {
		return pendingToken()
	}
	return completedToken(f.publishErr)
}

func (f *fakePaho) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return completedToken(f.subErr)
	}
	f.subscriptions[topic] = callback
	return completedToken(nil)
}

func (f *fakePaho) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		f.Subscribe(topic, qos, callback)
	}
	return completedToken(nil)
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range topics {
		delete(f.subscriptions, topic)
	}
	return completedToken(nil)
}

func (f *fakePaho) AddRoute(_ string, _ pahomqtt.MessageHandler) {}

func (f *fakePaho) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

// deliver invokes the handler registered for filter as paho would.
func (f *fakePaho) deliver(filter, topic string, payload []byte) {
	f.mu.Lock()
	handler := f.subscriptions[filter]
	f.mu.Unlock()
	if handler != nil {
		handler(f, &fakeMessage{topic: topic, payload: payload})
	}
}

func (f *fakePaho) publishCalls() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishCall, len(f.publishes))
	copy(out, f.publishes)
	return out
}

func (f *fakePaho) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}
