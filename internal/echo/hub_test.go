package echo

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(testLogger(), NewMetrics(prometheus.NewRegistry()))
}

// TestNewHub tests hub creation
func TestNewHub(t *testing.T) {
	hub := newTestHub()

	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.NotNil(t, hub.quit)
	assert.False(t, hub.running)
	assert.Equal(t, 0, hub.ClientCount())
}

// TestHubStartStop verifies start/stop are idempotent
func TestHubStartStop(t *testing.T) {
	hub := newTestHub()

	hub.Start()
	hub.Start()
	assert.True(t, hub.running)

	hub.Stop()
	hub.Stop()
	assert.False(t, hub.running)
}

// TestHubRegisterUnregister tracks the client set and metrics
func TestHubRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	hub.Start()
	defer hub.Stop()

	client := &Client{
		id:         "test-client-1",
		hub:        hub,
		send:       make(chan []byte, 1),
		remoteAddr: "127.0.0.1:9999",
		logger:     testLogger(),
		metrics:    hub.metrics,
	}

	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(hub.metrics.ConnectionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(hub.metrics.ActiveConnections))

	hub.Unregister(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(hub.metrics.ActiveConnections))

	// send channel is closed on unregister
	_, open := <-client.send
	assert.False(t, open)
}

// TestHubRegisterAfterStop: a late registration must not strand the
// client; it is turned away with its send channel closed so its write
// pump shuts down.
func TestHubRegisterAfterStop(t *testing.T) {
	hub := newTestHub()
	hub.Start()
	hub.Stop()

	client := &Client{
		id:      "late-client",
		hub:     hub,
		send:    make(chan []byte, 1),
		logger:  testLogger(),
		metrics: hub.metrics,
	}
	hub.Register(client)

	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-client.send
	assert.False(t, open)
}

// TestHubStopClosesClients: remaining clients are torn down on Stop
func TestHubStopClosesClients(t *testing.T) {
	hub := newTestHub()
	hub.Start()

	client := &Client{
		id:      "test-client-2",
		hub:     hub,
		send:    make(chan []byte, 1),
		logger:  testLogger(),
		metrics: hub.metrics,
	}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-client.send
	assert.False(t, open)
}
