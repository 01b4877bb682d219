package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/nerrad567/mqttgate/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the initial dial.
	defaultConnectTimeout = 10 * time.Second

	// defaultFlushTimeout bounds a flush when the caller context has no deadline.
	defaultFlushTimeout = 5 * time.Second

	// defaultDrainTimeout bounds Close.
	defaultDrainTimeout = 5 * time.Second
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Client wraps a nats.go connection.
//
// All methods are safe for concurrent use.
type Client struct {
	cfg config.NATSConfig

	mu   sync.RWMutex
	conn *natsgo.Conn

	logger   Logger
	loggerMu sync.RWMutex
}

// Connect dials the configured NATS server.
//
// Reconnection after the initial connect is delegated to nats.go
// (MaxReconnects -1 retries forever).
func Connect(cfg config.NATSConfig) (*Client, error) {
	c := &Client{cfg: cfg}

	conn, err := natsgo.Connect(cfg.URL, c.buildOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return c, nil
}

// buildOptions translates config into nats.go connection options.
func (c *Client) buildOptions() []natsgo.Option {
	opts := []natsgo.Option{
		natsgo.Timeout(defaultConnectTimeout),
		natsgo.MaxReconnects(c.cfg.MaxReconnects),
		natsgo.ReconnectWait(time.Duration(c.cfg.ReconnectWait) * time.Second),
		natsgo.DisconnectErrHandler(c.handleDisconnect),
		natsgo.ReconnectHandler(c.handleReconnect),
		natsgo.ClosedHandler(c.handleClosed),
	}

	if c.cfg.Name != "" {
		opts = append(opts, natsgo.Name(c.cfg.Name))
	}

	switch {
	case c.cfg.Username != "":
		opts = append(opts, natsgo.UserInfo(c.cfg.Username, c.cfg.Password))
	case c.cfg.Token != "":
		opts = append(opts, natsgo.Token(c.cfg.Token))
	}

	return opts
}

func (c *Client) handleDisconnect(_ *natsgo.Conn, err error) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn("NATS disconnected", "error", err)
	}
}

func (c *Client) handleReconnect(conn *natsgo.Conn) {
	if logger := c.getLogger(); logger != nil {
		logger.Info("NATS reconnected", "url", conn.ConnectedUrl())
	}
}

func (c *Client) handleClosed(_ *natsgo.Conn) {
	if logger := c.getLogger(); logger != nil {
		logger.Info("NATS connection closed")
	}
}

// Publish sends data on subject and flushes, so the call returns only after
// the server has processed the message or ctx is done.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}

	conn := c.getConn()
	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}

	if limit := conn.MaxPayload(); limit > 0 && int64(len(data)) > limit {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d bytes", ErrPayloadTooLarge, len(data), limit)
	}

	if err := conn.Publish(subject, data); err != nil {
		return c.wrapPublishError(err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return c.wrapPublishError(err)
	}

	return nil
}

func (c *Client) wrapPublishError(err error) error {
	switch {
	case errors.Is(err, natsgo.ErrMaxPayload):
		return fmt.Errorf("%w: %w", ErrPayloadTooLarge, err)
	case errors.Is(err, natsgo.ErrConnectionClosed), errors.Is(err, natsgo.ErrConnectionDraining):
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	default:
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	conn := c.getConn()
	return conn != nil && conn.IsConnected()
}

// HealthCheck verifies the NATS connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("nats health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close drains pending messages and closes the connection. Closing an
// already closed client is not an error.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	done := make(chan struct{})
	conn.SetClosedHandler(func(*natsgo.Conn) { close(done) })

	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("draining nats connection: %w", err)
	}

	select {
	case <-done:
	case <-time.After(defaultDrainTimeout):
		conn.Close()
	}
	return nil
}

func (c *Client) getConn() *natsgo.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// SetLogger sets a logger for connection state changes.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
