// Package probe implements the scripted WebSocket smoke test: dial an
// endpoint, send a fixed ordered message sequence with pauses between
// sends, report every lifecycle event (open, message, error, close) to
// the console, then close and exit. One session is one connection
// attempt; failures are terminal and never retried.
package probe
