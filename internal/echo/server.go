package echo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"wsprobe/internal/config"
	"wsprobe/internal/infrastructure"
)

// Server is the companion echo server: it upgrades /ws, echoes every
// text frame back to its sender, and exposes health and metrics.
type Server struct {
	cfg      config.EchoConfig
	hub      *Hub
	upgrader websocket.Upgrader
	registry *prometheus.Registry
	metrics  *Metrics
	logger   *slog.Logger
	started  time.Time
}

// NewServer creates a Server from configuration
func NewServer(cfg config.EchoConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "echo.server"))

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	return &Server{
		cfg: cfg,
		hub: NewHub(logger, metrics),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Local test tool; cross-origin checks would only get in the way
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		started:  time.Now(),
	}
}

// Start launches the hub without binding a listener; used when the
// handler is mounted on an external HTTP server.
func (s *Server) Start() {
	s.hub.Start()
}

// Stop terminates the hub and disconnects remaining clients
func (s *Server) Stop() {
	s.hub.Stop()
}

// Hub exposes the connection registry
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes: /ws, /healthz, /metrics
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// handleWS upgrades the connection and starts the client pumps
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}

	limiter := rate.NewLimiter(rate.Limit(s.cfg.MessageRate), s.cfg.MessageBurst)
	client := NewClient(s.hub, conn, limiter, s.cfg.PongWait, s.logger)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// handleHealth reports liveness plus basic connection stats
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"clients":        s.hub.ClientCount(),
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	s.Start()
	defer s.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Echo server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Echo server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
