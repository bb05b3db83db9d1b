// Package capture runs the outbound audio pipeline: microphone blocks are
// converted to 16-bit PCM, wrapped in protobuf audio frames and sent over
// the transport, strictly in capture order.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/KabeerThockchom/voxfolio/internal/transport"
	"github.com/KabeerThockchom/voxfolio/pkg/audio"
	"github.com/KabeerThockchom/voxfolio/pkg/frame"
)

// Encoder wraps raw PCM into wire frames. Satisfied by [frame.Codec].
type Encoder interface {
	EncodeAudio(pcm []byte, sampleRate, channels int) ([]byte, error)
}

var _ Encoder = (*frame.Codec)(nil)

// Pipeline pulls captured blocks from an [audio.Source] and ships them over
// a [transport.Transport]. A single goroutine consumes the source, so frames
// leave in exactly the order the device delivered them.
type Pipeline struct {
	source     audio.Source
	tr         transport.Transport
	enc        Encoder
	sampleRate int
	channels   int
	onSent     func()

	muted atomic.Bool

	cancel  context.CancelFunc
	done    chan struct{}
	stopMu  sync.Mutex
	stopped bool

	// OnSendError, when set, is called once when a Send fails and the
	// pipeline shuts down. Lets the session react to a dead transport.
	OnSendError func(error)
}

// Config carries the audio parameters stamped on every outbound frame.
type Config struct {
	SampleRate int
	Channels   int

	// OnSent, when set, is called after every successful send. Used for
	// frame accounting; must not block.
	OnSent func()
}

// Start launches the pipeline goroutine. The pipeline runs until the source
// channel closes, a send fails, or [Pipeline.Stop] is called.
func Start(source audio.Source, tr transport.Transport, enc Encoder, cfg Config) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		source:     source,
		tr:         tr,
		enc:        enc,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		onSent:     cfg.OnSent,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

// SetMuted toggles the outbound gate. While muted, captured blocks are
// still drained from the source but never encoded or sent, so unmuting
// resumes with live audio rather than a backlog.
func (p *Pipeline) SetMuted(muted bool) {
	p.muted.Store(muted)
}

// Muted reports the current gate state.
func (p *Pipeline) Muted() bool {
	return p.muted.Load()
}

// Stop closes the source and waits for the pipeline goroutine to exit.
// Safe to call more than once.
func (p *Pipeline) Stop() error {
	p.stopMu.Lock()
	if p.stopped {
		p.stopMu.Unlock()
		<-p.done
		return nil
	}
	p.stopped = true
	p.stopMu.Unlock()

	err := p.source.Close()
	p.cancel()
	<-p.done
	if err != nil {
		return fmt.Errorf("capture: close source: %w", err)
	}
	return nil
}

// Done is closed once the pipeline goroutine has exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-p.source.Blocks():
			if !ok {
				return
			}
			if p.muted.Load() {
				continue
			}
			if err := p.send(ctx, block); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("capture: send failed, stopping pipeline", "err", err)
				if p.OnSendError != nil {
					p.OnSendError(err)
				}
				return
			}
		}
	}
}

func (p *Pipeline) send(ctx context.Context, block []float32) error {
	pcm := audio.EncodeS16LE(block)
	payload, err := p.enc.EncodeAudio(pcm, p.sampleRate, p.channels)
	if err != nil {
		return fmt.Errorf("capture: encode frame: %w", err)
	}
	if err := p.tr.Send(ctx, payload); err != nil {
		return err
	}
	if p.onSent != nil {
		p.onSent()
	}
	return nil
}
