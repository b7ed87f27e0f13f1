package echo

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"wsprobe/internal/infrastructure"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// heartbeatPayload is the keepalive some browser clients send as a
	// text frame; it is consumed, never echoed.
	heartbeatPayload = `{"type":"heartbeat"}`
)

// Client is one connected peer: a websocket connection plus its echo
// send queue and rate limiter.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound (echoed) messages
	send chan []byte

	limiter *rate.Limiter

	id          string
	remoteAddr  string
	connectedAt time.Time

	logger   *slog.Logger
	metrics  *Metrics
	pongWait time.Duration
}

// NewClient wraps an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, limiter *rate.Limiter, pongWait time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "echo.client"),
		slog.String("client_id", id),
	)

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		limiter:     limiter,
		id:          id,
		remoteAddr:  conn.RemoteAddr().String(),
		connectedAt: time.Now(),
		logger:      logger,
		metrics:     hub.metrics,
		pongWait:    pongWait,
	}
}

// ReadPump pumps inbound frames, queueing each text message back onto
// the client's own send channel.
func (c *Client) ReadPump() {
	defer func() {
		c.logger.Info("Echo client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("Unexpected WebSocket close", slog.String("error", err.Error()))
			}
			return
		}
		// Any inbound traffic proves liveness
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

		if messageType != websocket.TextMessage {
			continue
		}
		if string(message) == heartbeatPayload {
			c.logger.Debug("Heartbeat received")
			continue
		}

		if !c.limiter.Allow() {
			c.metrics.MessagesDropped.Inc()
			c.logger.Warn("Rate limit exceeded, dropping message",
				slog.Int("size", len(message)))
			continue
		}

		select {
		case c.send <- message:
		default:
			c.metrics.MessagesDropped.Inc()
			c.logger.Warn("Send buffer full, dropping message")
		}
	}
}

// WritePump drains the send channel back to the peer and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	pingPeriod := (c.pongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Error writing echo", slog.String("error", err.Error()))
				return
			}
			c.metrics.MessagesEchoed.Inc()
			c.metrics.BytesEchoed.Add(float64(len(message)))

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
