// Package mock provides an in-memory [transport.Transport] for unit tests.
//
// Tests feed inbound traffic via PushBinary/PushText, inspect outbound
// frames via Sent, and simulate an unsolicited remote close via Fail.
package mock

import (
	"context"
	"sync"

	"github.com/KabeerThockchom/voxfolio/internal/transport"
)

// Transport is a mock implementation of [transport.Transport].
type Transport struct {
	mu sync.Mutex

	binary chan []byte
	text   chan []byte
	done   chan struct{}

	errVal error
	closed bool

	// SendError, when set, is returned by every Send call.
	SendError error

	// Sent records every payload passed to Send, in order.
	Sent [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// OnClose, when set, is invoked on the first Close call. Used by
	// teardown-ordering tests.
	OnClose func()
}

var _ transport.Transport = (*Transport)(nil)

// New creates a mock transport with buffered inbound channels.
func New() *Transport {
	return &Transport{
		binary: make(chan []byte, 64),
		text:   make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

// Dialer returns a [transport.DialFunc] that hands out this mock. The dial
// context and options are ignored.
func (t *Transport) Dialer() transport.DialFunc {
	return func(context.Context, transport.Options) (transport.Transport, error) {
		return t, nil
	}
}

// PushBinary delivers one inbound binary message.
func (t *Transport) PushBinary(data []byte) { t.binary <- data }

// PushText delivers one inbound text message.
func (t *Transport) PushText(data []byte) { t.text <- data }

// Fail simulates an unsolicited transport failure: Err reports err and the
// inbound channels close.
func (t *Transport) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.errVal = err
	close(t.binary)
	close(t.text)
	close(t.done)
}

// Send implements [transport.Transport].
func (t *Transport) Send(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SendError != nil {
		return t.SendError
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	t.Sent = append(t.Sent, cp)
	return nil
}

// SentCount returns the number of Send calls so far.
func (t *Transport) SentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Sent)
}

// Binary implements [transport.Transport].
func (t *Transport) Binary() <-chan []byte { return t.binary }

// Text implements [transport.Transport].
func (t *Transport) Text() <-chan []byte { return t.text }

// Done implements [transport.Transport].
func (t *Transport) Done() <-chan struct{} { return t.done }

// Err implements [transport.Transport].
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errVal
}

// Close implements [transport.Transport]. A local close leaves Err nil.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CallCountClose++
	if !t.closed {
		t.closed = true
		close(t.binary)
		close(t.text)
		close(t.done)
		if t.OnClose != nil {
			t.OnClose()
		}
	}
	return nil
}
