package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wsprobe/internal/config"
	"wsprobe/internal/infrastructure"
)

// Session drives one scripted interaction against a WebSocket endpoint:
// connect, send the configured messages in order with a pause between
// each, wait, close, and report every lifecycle event.
type Session struct {
	cfg      config.ProbeConfig
	reporter *Reporter
	logger   *slog.Logger
	id       string

	mu        sync.Mutex
	scriptErr error
}

// NewSession creates a session from configuration. Events are printed
// through reporter; nil logger falls back to the global one.
func NewSession(cfg config.ProbeConfig, reporter *Reporter, logger *slog.Logger) *Session {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "probe.session"),
		slog.String("session_id", id),
	)

	return &Session{
		cfg:      cfg,
		reporter: reporter,
		logger:   logger,
		id:       id,
	}
}

// ID returns the session identifier used in structured logs
func (s *Session) ID() string {
	return s.id
}

// Run executes the session and blocks until the connection lifecycle
// completes. It returns nil after a clean close, or the terminal error.
// Failures are never retried; one session is one connection attempt.
func (s *Session) Run(ctx context.Context) error {
	ctx = infrastructure.WithTraceID(ctx, s.id)
	started := time.Now()

	s.reporter.Connecting(s.cfg.ServerURL)
	s.logger.InfoContext(ctx, "Starting probe session",
		slog.String("server_url", s.cfg.ServerURL),
		slog.Int("scripted_messages", len(s.cfg.Messages)))

	var client *Client
	client = NewClient(s.cfg.ServerURL, s.cfg.HandshakeTimeout, Handlers{
		OnOpen: func() {
			s.reporter.Connected()
			s.runScript(ctx, client)
		},
		OnMessage: func(message []byte) {
			s.reporter.Received(string(message))
		},
		OnError: func(err error) {
			s.reporter.Error(err)
		},
		OnClose: func() {
			s.reporter.Closed()
		},
	}, s.logger)

	if err := client.Dial(ctx); err != nil {
		return err
	}

	err := client.Run()
	if err == nil {
		// A failed send races the close handshake it triggers; the read
		// loop can come down looking clean, but the script's error still
		// decides the session outcome.
		err = s.scriptError()
	}

	sent, received, bytesSent, bytesReceived := client.Stats()
	s.logger.InfoContext(ctx, "Probe session finished",
		slog.Duration("duration", time.Since(started)),
		slog.Int64("messages_sent", sent),
		slog.Int64("messages_received", received),
		slog.Int64("bytes_sent", bytesSent),
		slog.Int64("bytes_received", bytesReceived),
		slog.Bool("clean", err == nil))
	return err
}

// runScript sends the configured messages strictly in order, pausing
// between sends, then waits the close delay and starts the closing
// handshake. Runs on the open-callback goroutine.
func (s *Session) runScript(ctx context.Context, client *Client) {
	for _, message := range s.cfg.Messages {
		// Confirmation goes out before the frame does, so an immediate
		// echo can never print ahead of its own send.
		s.reporter.Sent(message)
		if err := client.Send(message); err != nil {
			// Terminal for the session
			s.setScriptError(err)
			s.reporter.Error(err)
			s.logger.ErrorContext(ctx, "Aborting script after send failure",
				slog.String("error", err.Error()))
			client.Close()
			return
		}
		time.Sleep(s.cfg.SendInterval)
	}

	time.Sleep(s.cfg.CloseDelay)
	client.Close()
}

// setScriptError records the first send failure as the session's
// terminal error.
func (s *Session) setScriptError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scriptErr == nil {
		s.scriptErr = err
	}
}

func (s *Session) scriptError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scriptErr
}
