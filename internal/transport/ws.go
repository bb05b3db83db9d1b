package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// maxInboundMessage bounds a single inbound message. Audio frames from the
// backend run a few hundred KiB at most; 4 MiB leaves generous headroom.
const maxInboundMessage = 4 << 20

// Channel buffers absorb bursts of inbound messages without stalling the
// read loop. Ordering within each channel is preserved regardless.
const (
	binaryBuffer = 64
	textBuffer   = 16
)

// Conn is the WebSocket-backed [Transport].
type Conn struct {
	conn *websocket.Conn

	binary chan []byte
	text   chan []byte
	done   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	errVal error

	closeOnce sync.Once
}

var _ Transport = (*Conn)(nil)

// Dial opens a connection to the backend described by opts. It satisfies
// [DialFunc].
func Dial(ctx context.Context, opts Options) (Transport, error) {
	endpoint, err := opts.Endpoint()
	if err != nil {
		return nil, err
	}

	ws, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", opts.URL, err)
	}
	ws.SetReadLimit(maxInboundMessage)

	connCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		conn:   ws,
		binary: make(chan []byte, binaryBuffer),
		text:   make(chan []byte, textBuffer),
		done:   make(chan struct{}),
		ctx:    connCtx,
		cancel: cancel,
	}
	go c.receiveLoop()

	slog.Debug("transport connected", "endpoint", opts.URL, "realtime", opts.Realtime)
	return c, nil
}

// receiveLoop reads messages and fans them out by wire representation:
// binary frames to the binary channel, text to the control channel. It owns
// both channels and the done signal; all three close when it exits.
func (c *Conn) receiveLoop() {
	defer func() {
		close(c.binary)
		close(c.text)
		close(c.done)
	}()

	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.setErr(err)
				slog.Warn("transport read failed", "err", err)
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			select {
			case c.binary <- data:
			case <-c.ctx.Done():
				return
			}
		case websocket.MessageText:
			select {
			case c.text <- data:
			case <-c.ctx.Done():
				return
			}
		}
	}
}

// Send implements [Transport].
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if err := c.conn.Write(ctx, websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Binary implements [Transport].
func (c *Conn) Binary() <-chan []byte { return c.binary }

// Text implements [Transport].
func (c *Conn) Text() <-chan []byte { return c.text }

// Done implements [Transport].
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err implements [Transport].
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errVal
}

// Close implements [Transport]. A locally requested close leaves Err nil.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close(websocket.StatusNormalClosure, "session stopped")
	})
	return nil
}

func (c *Conn) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errVal == nil {
		c.errVal = err
	}
}
