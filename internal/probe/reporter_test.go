package probe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestReporterLines pins the exact console format; operators read these
// lines by eye and scripts grep for the glyph prefixes.
func TestReporterLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	r.Connecting("ws://localhost:8096/ws")
	r.Connected()
	r.Sent("hello")
	r.Received("hello")
	r.Error(errors.New("connection refused"))
	r.Closed()

	want := "Connecting to ws://localhost:8096/ws...\n" +
		"✅ Connected to server\n" +
		"📤 Sent: hello\n" +
		"📩 Received: hello\n" +
		"❌ Error: connection refused\n" +
		"🔌 Connection closed\n"
	assert.Equal(t, want, buf.String())
}
