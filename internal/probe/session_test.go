package probe_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wsprobe/internal/config"
	"wsprobe/internal/probe"
)

// syncBuffer guards the reporter's output buffer; the read loop and the
// script goroutine both write through it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := strings.TrimSpace(b.buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func probeConfig(url string, messages ...string) config.ProbeConfig {
	return config.ProbeConfig{
		ServerURL:        url,
		Messages:         messages,
		SendInterval:     100 * time.Millisecond,
		CloseDelay:       150 * time.Millisecond,
		HandshakeTimeout: 2 * time.Second,
	}
}

func indexOf(lines []string, substr string) int {
	for i, line := range lines {
		if strings.Contains(line, substr) {
			return i
		}
	}
	return -1
}

// TestSessionAgainstEcho runs the full scripted session against an echo
// server and checks the ordering contract of the report lines.
func TestSessionAgainstEcho(t *testing.T) {
	url, _ := startEchoServer(t)

	out := &syncBuffer{}
	session := probe.NewSession(probeConfig(url, "first", "second", "third"),
		probe.NewReporter(out), testLogger())

	require.NoError(t, session.Run(context.Background()))

	lines := out.Lines()
	require.NotEmpty(t, lines)

	// connect banner first, closed notice last, exactly once
	assert.Contains(t, lines[0], "Connecting to "+url)
	assert.Contains(t, lines[1], "Connected to server")
	assert.Contains(t, lines[len(lines)-1], "Connection closed")
	closedCount := 0
	for _, line := range lines {
		if strings.Contains(line, "Connection closed") {
			closedCount++
		}
		assert.NotContains(t, line, "Error:")
	}
	assert.Equal(t, 1, closedCount)

	// sends appear strictly in script order
	sentFirst := indexOf(lines, "Sent: first")
	sentSecond := indexOf(lines, "Sent: second")
	sentThird := indexOf(lines, "Sent: third")
	require.True(t, sentFirst >= 0 && sentSecond >= 0 && sentThird >= 0, "missing sent lines: %v", lines)
	assert.Less(t, sentFirst, sentSecond)
	assert.Less(t, sentSecond, sentThird)

	// each echo lands after its own send and before the next send
	recvFirst := indexOf(lines, "Received: first")
	recvSecond := indexOf(lines, "Received: second")
	recvThird := indexOf(lines, "Received: third")
	require.True(t, recvFirst >= 0 && recvSecond >= 0 && recvThird >= 0, "missing received lines: %v", lines)
	assert.Greater(t, recvFirst, sentFirst)
	assert.Less(t, recvFirst, sentSecond)
	assert.Greater(t, recvSecond, sentSecond)
	assert.Less(t, recvSecond, sentThird)
	assert.Greater(t, recvThird, sentThird)
}

// TestSessionObservesCloseDelay: the session must not come down before
// the scripted pauses have elapsed.
func TestSessionObservesCloseDelay(t *testing.T) {
	url, _ := startEchoServer(t)

	cfg := probeConfig(url, "only")
	out := &syncBuffer{}
	session := probe.NewSession(cfg, probe.NewReporter(out), testLogger())

	started := time.Now()
	require.NoError(t, session.Run(context.Background()))
	elapsed := time.Since(started)

	// one send interval plus the close delay is the scripted minimum
	assert.GreaterOrEqual(t, elapsed, cfg.SendInterval+cfg.CloseDelay)
}

// TestSessionNoListener reproduces the dead-port scenario: connect
// banner, error line, closed line, no sent lines, nonzero outcome.
func TestSessionNoListener(t *testing.T) {
	out := &syncBuffer{}
	session := probe.NewSession(probeConfig("ws://127.0.0.1:1/ws", "never sent"),
		probe.NewReporter(out), testLogger())

	err := session.Run(context.Background())
	require.Error(t, err)

	lines := out.Lines()
	require.Len(t, lines, 3, "expected connect, error, closed: %v", lines)
	assert.Contains(t, lines[0], "Connecting to ")
	assert.Contains(t, lines[1], "Error:")
	assert.Contains(t, lines[2], "Connection closed")
	assert.Equal(t, -1, indexOf(lines, "Sent:"))
}

// TestSessionTransportDropMidScript: the peer resets the connection
// after the first message, with no close handshake. The session must
// report the error and end with a failed outcome, not a clean one.
func TestSessionTransportDropMidScript(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// drop the TCP connection without a close frame
		conn.UnderlyingConn().Close()
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	out := &syncBuffer{}
	session := probe.NewSession(probeConfig(url, "first", "second", "third"),
		probe.NewReporter(out), testLogger())

	err := session.Run(context.Background())
	require.Error(t, err)

	lines := out.Lines()
	assert.GreaterOrEqual(t, indexOf(lines, "Error:"), 0, "expected an error line: %v", lines)

	closedCount := 0
	for _, line := range lines {
		if strings.Contains(line, "Connection closed") {
			closedCount++
		}
	}
	assert.Equal(t, 1, closedCount)
}

// TestSessionInvalidURL fails fast through the same error path
func TestSessionInvalidURL(t *testing.T) {
	out := &syncBuffer{}
	session := probe.NewSession(probeConfig("localhost:8096/ws", "never sent"),
		probe.NewReporter(out), testLogger())

	err := session.Run(context.Background())
	require.Error(t, err)

	lines := out.Lines()
	assert.GreaterOrEqual(t, indexOf(lines, "Error:"), 0)
	assert.Equal(t, -1, indexOf(lines, "Sent:"))
}

// TestSessionIDStable: the identifier used for log correlation does not
// change across calls.
func TestSessionIDStable(t *testing.T) {
	session := probe.NewSession(probeConfig("ws://localhost:1/ws"), probe.NewReporter(&syncBuffer{}), testLogger())
	assert.NotEmpty(t, session.ID())
	assert.Equal(t, session.ID(), session.ID())
}
