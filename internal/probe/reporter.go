package probe

import (
	"fmt"
	"io"
	"sync"
)

// Status glyphs for the console report lines. These are the fixed
// prefixes operators grep for when eyeballing a probe run.
const (
	glyphConnected = "✅"
	glyphSent      = "📤"
	glyphReceived  = "📩"
	glyphError     = "❌"
	glyphClosed    = "🔌"
)

// Reporter prints human-readable session events to a single writer.
// Output is plain text for visual inspection; the structured log carries
// the same events with fields.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter creates a reporter writing to w
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Connecting announces the dial attempt
func (r *Reporter) Connecting(url string) {
	r.printf("Connecting to %s...\n", url)
}

// Connected announces a successful handshake
func (r *Reporter) Connected() {
	r.printf("%s Connected to server\n", glyphConnected)
}

// Sent confirms an outbound message
func (r *Reporter) Sent(message string) {
	r.printf("%s Sent: %s\n", glyphSent, message)
}

// Received reports an inbound message
func (r *Reporter) Received(message string) {
	r.printf("%s Received: %s\n", glyphReceived, message)
}

// Error reports a session error
func (r *Reporter) Error(err error) {
	r.printf("%s Error: %v\n", glyphError, err)
}

// Closed reports the end of the connection lifecycle
func (r *Reporter) Closed() {
	r.printf("%s Connection closed\n", glyphClosed)
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}
