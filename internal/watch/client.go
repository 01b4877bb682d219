package watch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/mqttgate/internal/infrastructure/mqtt"
)

// Client is one WebSocket connection and its topic filters.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	filters map[string]struct{}
	mu      sync.RWMutex
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		filters: make(map[string]struct{}),
	}
}

// matches reports whether topic matches any of the client's filters.
func (c *Client) matches(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for f := range c.filters {
		if mqtt.TopicMatches(f, topic) {
			return true
		}
	}
	return false
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	pingInterval, pongWait := c.hub.intervals()
	if size := c.hub.cfg.MaxMessageSize; size > 0 {
		c.conn.SetReadLimit(int64(size))
	}
	//nolint:errcheck // best-effort deadline
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(data)
	}
}

func (c *Client) writePump() {
	pingInterval, writeWait := c.hub.intervals()
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		c.handleSubscribe(msg)
	case TypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case TypePing:
		c.sendResponse(msg.ID, TypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func decodeChannels(msg Message) ([]string, bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, false
	}
	var sub SubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, false
	}
	return sub.Channels, true
}

func (c *Client) handleSubscribe(msg Message) {
	channels, ok := decodeChannels(msg)
	if !ok || len(channels) == 0 {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}
	for _, f := range channels {
		if err := mqtt.ValidateTopicFilter(f); err != nil {
			c.sendError(msg.ID, err.Error())
			return
		}
	}

	c.mu.Lock()
	for _, f := range channels {
		c.filters[f] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "channels", channels)
	c.sendResponse(msg.ID, TypeResponse, map[string]any{"subscribed": channels})
}

func (c *Client) handleUnsubscribe(msg Message) {
	channels, ok := decodeChannels(msg)
	if !ok {
		c.sendError(msg.ID, "invalid unsubscribe payload")
		return
	}

	c.mu.Lock()
	for _, f := range channels {
		delete(c.filters, f)
	}
	c.mu.Unlock()

	c.sendResponse(msg.ID, TypeResponse, map[string]any{"unsubscribed": channels})
}

// trySend queues data without blocking. Full buffers drop the frame; a
// channel closed by a concurrent disconnect is absorbed.
func (c *Client) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(Message{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *Client) sendError(id, message string) {
	c.sendResponse(id, TypeError, map[string]string{"message": message})
}
