package probe

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"wsprobe/internal/config"
	"wsprobe/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed for the peer to answer our close frame before the
	// connection is torn down anyway
	closeGraceWait = 5 * time.Second
)

// Handlers holds the four lifecycle callbacks dispatched by a Client.
// Any of them may be nil. OnClose is invoked exactly once per connection,
// whether closure was initiated locally or by the remote peer.
type Handlers struct {
	OnOpen    func()
	OnMessage func(message []byte)
	OnError   func(err error)
	OnClose   func()
}

// Client is a one-shot WebSocket client: dial once, run to completion.
// It owns the connection for its whole lifetime; there is no reconnect.
type Client struct {
	url      string
	dialer   *websocket.Dialer
	handlers Handlers
	logger   *slog.Logger

	conn       *websocket.Conn
	writeMu    sync.Mutex
	closeTimer *time.Timer // guarded by writeMu
	closeGrace time.Duration

	closeOnce    sync.Once
	closeHandled sync.Once
	localClose   atomic.Bool

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	bytesSent        atomic.Int64
	bytesReceived    atomic.Int64
}

// NewClient creates a client for the given ws:// or wss:// endpoint.
func NewClient(url string, handshakeTimeout time.Duration, handlers Handlers, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(
		slog.String("component", "probe.client"),
		slog.String("url", url),
	)

	return &Client{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		handlers:   handlers,
		logger:     logger,
		closeGrace: closeGraceWait,
	}
}

// Dial establishes the connection. On failure the error and close
// callbacks fire, mirroring a failed session lifecycle, and the error
// is returned.
func (c *Client) Dial(ctx context.Context) error {
	if err := config.ValidateServerURL(c.url); err != nil {
		c.dispatchError(err)
		c.dispatchClose()
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.ErrorContext(ctx, "WebSocket dial failed", slog.String("error", err.Error()))
		c.dispatchError(err)
		c.dispatchClose()
		return err
	}

	c.conn = conn
	c.logger.InfoContext(ctx, "WebSocket connection established",
		slog.String("remote_addr", conn.RemoteAddr().String()))
	return nil
}

// Run dispatches the open callback and pumps inbound messages until the
// connection terminates. It blocks until the lifecycle completes and
// returns the terminal error, or nil after a clean close.
// Dial must have succeeded first.
func (c *Client) Run() error {
	defer func() {
		c.writeMu.Lock()
		if c.closeTimer != nil {
			c.closeTimer.Stop()
		}
		c.writeMu.Unlock()
		c.conn.Close()
	}()

	if c.handlers.OnOpen != nil {
		// The open handler drives the scripted sends and may sleep
		// between them; it runs off the read loop so inbound frames
		// keep flowing during those pauses.
		go c.handlers.OnOpen()
	}

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return c.terminate(err)
		}

		c.messagesReceived.Add(1)
		c.bytesReceived.Add(int64(len(message)))

		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(message)
		}
	}
}

// terminate maps the read loop's exit error to the error/close callbacks
func (c *Client) terminate(err error) error {
	defer c.dispatchClose()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("WebSocket closed by peer", slog.String("close", err.Error()))
		return nil
	}
	if c.localClose.Load() {
		// Errors after we started the close handshake are part of
		// teardown, not session failures.
		c.logger.Info("WebSocket closed", slog.String("detail", err.Error()))
		return nil
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Error("Unexpected WebSocket close", slog.String("error", err.Error()))
	} else {
		c.logger.Error("WebSocket read failed", slog.String("error", err.Error()))
	}
	c.dispatchError(err)
	return err
}

// Send transmits a single text frame
func (c *Client) Send(message string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		c.logger.Error("WebSocket write failed", slog.String("error", err.Error()))
		return err
	}

	c.messagesSent.Add(1)
	c.bytesSent.Add(int64(len(message)))
	return nil
}

// Close starts the closing handshake. Idempotent; the close callback
// still fires exactly once, from the read loop's teardown path.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.localClose.Store(true)

		c.writeMu.Lock()
		err := c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		if err == nil {
			// Bound the wait for the peer's close reply. Read deadlines
			// belong to the read goroutine, so an ignored handshake is
			// broken by tearing the connection down instead.
			c.closeTimer = time.AfterFunc(c.closeGrace, func() { c.conn.Close() })
		}
		c.writeMu.Unlock()

		if err != nil {
			c.logger.Debug("Failed to send close frame", slog.String("error", err.Error()))
			c.conn.Close()
		}
	})
}

// Stats reports per-session transfer counters
func (c *Client) Stats() (messagesSent, messagesReceived, bytesSent, bytesReceived int64) {
	return c.messagesSent.Load(), c.messagesReceived.Load(), c.bytesSent.Load(), c.bytesReceived.Load()
}

func (c *Client) dispatchError(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

func (c *Client) dispatchClose() {
	c.closeHandled.Do(func() {
		if c.handlers.OnClose != nil {
			c.handlers.OnClose()
		}
	})
}
