package echo

import (
	"log/slog"
	"sync"

	"wsprobe/internal/infrastructure"
)

// Hub maintains the set of active clients. Echoing is per-client; the
// hub only does bookkeeping, metrics, and shutdown fan-out.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from new connections
	register chan *Client

	// Unregister requests from disconnecting clients
	unregister chan *Client

	mu sync.RWMutex

	logger  *slog.Logger
	metrics *Metrics

	quit    chan struct{}
	running bool
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "echo.hub"))

	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Start launches the hub loop. Idempotent.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop terminates the hub loop and closes every remaining client. Idempotent.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			if !h.running {
				// Stop won the race; don't strand the client's pumps
				h.mu.Unlock()
				close(client.send)
				continue
			}
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.ConnectionsTotal.Inc()
			h.metrics.ActiveConnections.Set(float64(count))

			h.logger.Info("Client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			count := len(h.clients)
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count = len(h.clients)
			}
			h.mu.Unlock()

			h.metrics.ActiveConnections.Set(float64(count))

			h.logger.Info("Client unregistered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", count))
		}
	}
}

// Register queues a client for registration. A client arriving after
// Stop is turned away with its send channel closed, which shuts its
// write pump down.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		close(client.send)
	}
}

// Unregister queues a client for removal
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
