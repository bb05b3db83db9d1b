// Package mock provides in-memory mock implementations of the [audio.Source]
// and [audio.Sink] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and written data, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	src := mock.NewSource(8)
//	src.Push([]float32{0, 0.5, -0.5})
//	sink := &mock.Sink{SinkFormat: audio.Format{SampleRate: 16000, Channels: 1}}
package mock

import (
	"sync"

	"github.com/KabeerThockchom/voxfolio/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source]. Tests feed blocks in
// via [Source.Push] and close the stream via [Source.Close].
type Source struct {
	mu sync.Mutex

	blocks chan []float32
	closed bool

	// CloseError is returned by [Source.Close].
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	// OnClose, when set, is invoked on the first Close call. Used by
	// teardown-ordering tests.
	OnClose func()
}

// NewSource creates a mock Source whose block channel has the given buffer
// capacity.
func NewSource(buffer int) *Source {
	return &Source{blocks: make(chan []float32, buffer)}
}

// Push delivers one captured block to the consumer. Push after Close panics,
// matching the real device contract (the device never delivers past Close).
func (s *Source) Push(block []float32) {
	s.blocks <- block
}

// Blocks implements [audio.Source].
func (s *Source) Blocks() <-chan []float32 {
	return s.blocks
}

// Close implements [audio.Source]. The first call closes the block channel.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.blocks)
		if s.OnClose != nil {
			s.OnClose()
		}
	}
	return s.CloseError
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink]. It records every write.
type Sink struct {
	mu sync.Mutex

	// SinkFormat is returned by [Sink.Format]. Defaults to 16 kHz mono when
	// left zero.
	SinkFormat audio.Format

	// WriteError is returned by [Sink.Write].
	WriteError error

	// CloseError is returned by [Sink.Close].
	CloseError error

	// Writes holds a copy of every PCM slice passed to Write, in order.
	Writes [][]byte

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Write implements [audio.Sink].
func (s *Sink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteError != nil {
		return s.WriteError
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.Writes = append(s.Writes, cp)
	return nil
}

// Format implements [audio.Sink].
func (s *Sink) Format() audio.Format {
	if s.SinkFormat.SampleRate == 0 {
		return audio.Format{SampleRate: 16000, Channels: 1}
	}
	return s.SinkFormat
}

// Close implements [audio.Sink].
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}

// WriteCount returns the number of successful writes so far.
func (s *Sink) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Writes)
}

// WrittenBytes returns the concatenation of all writes so far.
func (s *Sink) WrittenBytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, w := range s.Writes {
		out = append(out, w...)
	}
	return out
}
