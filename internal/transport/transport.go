// Package transport provides the duplex, message-oriented connection between
// the Voxfolio client and the portfolio-analysis backend.
//
// One connection carries three streams: outbound binary audio frames,
// inbound binary audio frames, and inbound JSON control messages. Binary and
// text messages are delivered on separate channels, each strictly in arrival
// order. The transport itself never reconnects — an errored or closed
// connection is surfaced via Done/Err and the session controller decides
// what happens next.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Options carries the session parameters encoded into the connection URL's
// query string, matching the backend's /ws contract.
type Options struct {
	// URL is the backend WebSocket endpoint, e.g. "ws://127.0.0.1:8000/ws".
	URL string

	// PhoneNumber identifies the caller line to the backend.
	PhoneNumber string

	// Voice selects the assistant voice (e.g. "ash").
	Voice string

	// LogNeeded asks the backend to stream session_logs control messages.
	LogNeeded bool

	// Realtime selects the backend's realtime pipeline instead of the
	// cascaded one.
	Realtime bool
}

// Endpoint returns the full connection URL with query parameters applied.
func (o Options) Endpoint() (string, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return "", fmt.Errorf("transport: parse url %q: %w", o.URL, err)
	}
	q := u.Query()
	q.Set("phonenumber", o.PhoneNumber)
	q.Set("voice", o.Voice)
	q.Set("log_needed", strconv.FormatBool(o.LogNeeded))
	q.Set("realtime", strconv.FormatBool(o.Realtime))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Transport is one live duplex connection.
//
// Binary and Text deliver inbound messages in arrival order and are closed
// when the connection terminates. Done is closed on any termination —
// locally requested or not; Err reports the terminal error, nil for a clean
// local close.
type Transport interface {
	// Send transmits one binary message (an encoded audio frame envelope).
	Send(ctx context.Context, data []byte) error

	// Binary returns the inbound binary message channel.
	Binary() <-chan []byte

	// Text returns the inbound text (JSON control) message channel.
	Text() <-chan []byte

	// Done is closed when the connection has terminated.
	Done() <-chan struct{}

	// Err returns the terminal error after Done is closed.
	Err() error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// DialFunc opens a Transport. The session controller takes one of these so
// tests can substitute an in-memory transport.
type DialFunc func(ctx context.Context, opts Options) (Transport, error)
