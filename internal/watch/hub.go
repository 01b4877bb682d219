package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/mqttgate/internal/infrastructure/config"
	"github.com/nerrad567/mqttgate/internal/infrastructure/logging"
	"github.com/nerrad567/mqttgate/internal/infrastructure/mqtt"
)

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeMessage     = "message"
	TypeResponse    = "response"
	TypeError       = "error"

	// sendBufferSize is the per-client outbound message buffer size.
	sendBufferSize = 256

	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

// Message is a frame sent to or received from a WebSocket client.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Topic     string `json:"topic,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// SubscribePayload is the payload of subscribe/unsubscribe frames.
type SubscribePayload struct {
	Channels []string `json:"channels"`
}

// Subscriber is a broker client able to deliver messages matching a filter.
type Subscriber interface {
	Subscribe(filter string, qos byte, handler mqtt.MessageHandler) error
}

// Hub tracks WebSocket clients and relays broker messages to them.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	upgrader websocket.Upgrader

	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// Origin checking is handled by CORS middleware
				return true
			},
		},
		clients: make(map[*Client]struct{}),
	}
}

// Attach subscribes the hub to filter on sub. Subscriptions survive
// reconnects because the mqtt client restores them.
func (h *Hub) Attach(sub Subscriber, filter string, qos byte) error {
	h.logger.Info("watch relay subscribing", "filter", filter, "qos", qos)
	return sub.Subscribe(filter, qos, h.Relay)
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.closeAll()
	return nil
}

// Relay delivers one broker message to every client with a matching filter.
// Its signature matches mqtt.MessageHandler.
func (h *Hub) Relay(topic string, payload []byte) error {
	msg := Message{
		Type:      TypeMessage,
		Topic:     topic,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if utf8.Valid(payload) {
		msg.Payload = string(payload)
	} else {
		msg.Encoding = "base64"
		msg.Payload = payload // []byte marshals as base64
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.matches(topic) {
			c.trySend(data)
		}
	}
	return nil
}

// ServeHTTP upgrades the request to a WebSocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn)
	h.register(c)

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// intervals returns the keepalive ping interval and pong/write timeout.
func (h *Hub) intervals() (ping, pong time.Duration) {
	ping, pong = defaultPingInterval, defaultPongTimeout
	if h.cfg.PingInterval > 0 {
		ping = time.Duration(h.cfg.PingInterval) * time.Second
	}
	if h.cfg.PongTimeout > 0 {
		pong = time.Duration(h.cfg.PongTimeout) * time.Second
	}
	return ping, pong
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// unregister removes c. Only the caller that removes it closes its send
// channel, so concurrent shutdown cannot double-close.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}
