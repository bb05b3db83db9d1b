// Package playback schedules decoded audio frames onto an output sink so
// that segments play gaplessly, in arrival order, without overlap.
//
// The scheduler keeps a playback cursor: the time up to which audio has
// already been committed. Each accepted frame starts at the later of the
// cursor and the current clock reading, and the cursor advances by the
// frame's duration. After an idle stretch the cursor has fallen behind the
// clock, so the next frame snaps forward and plays immediately.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KabeerThockchom/voxfolio/pkg/audio"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("playback: scheduler closed")

const defaultQueueCap = 16

// item is one committed frame with its planned start time.
type item struct {
	frame audio.Frame
	start time.Duration
}

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithClock substitutes the scheduler's time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithQueueCapacity sets the initial capacity hint for the frame queue.
func WithQueueCapacity(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.queue = make([]item, 0, n)
		}
	}
}

// Scheduler plays frames through an [audio.Sink] in strict arrival order.
// A background dispatch goroutine waits out each frame's start time and
// writes its PCM to the sink. All exported methods are safe for concurrent
// use.
type Scheduler struct {
	sink  audio.Sink
	norm  *audio.Normalizer
	clock Clock

	mu     sync.Mutex
	queue  []item
	cursor time.Duration
	closed bool

	notify chan struct{}
	done   chan struct{}
	idle   chan struct{} // closed when the dispatch goroutine exits

	// OnScheduled, when set, is invoked under the scheduler lock as each
	// frame is committed, with its planned start and how far the cursor
	// snapped forward to catch up (zero for back-to-back frames). Used for
	// the scheduling-lag metric.
	OnScheduled func(start, catchUp time.Duration)
}

// New creates a scheduler writing to sink and starts its dispatch
// goroutine. Frames are normalized to the sink's format before playback.
func New(sink audio.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:   sink,
		norm:   &audio.Normalizer{Target: sink.Format()},
		clock:  NewClock(),
		queue:  make([]item, 0, defaultQueueCap),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		idle:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	go s.dispatch()
	return s
}

// Enqueue commits one frame for playback. WAV-containered payloads are
// unwrapped first; everything else is treated as raw 16-bit PCM in the
// frame's stated format.
//
// A frame that cannot be decoded is rejected with an error and the cursor
// does not move, so one corrupt frame never silences or shifts the frames
// that follow it.
func (s *Scheduler) Enqueue(f audio.Frame) error {
	if audio.IsWAV(f.Data) {
		decoded, err := audio.DecodeWAV(f.Data)
		if err != nil {
			return fmt.Errorf("playback: unwrap wav: %w", err)
		}
		f = decoded
	}
	if len(f.Data)%2 != 0 {
		return fmt.Errorf("playback: frame has odd pcm length %d", len(f.Data))
	}
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("playback: frame has invalid format %d Hz / %d ch", f.SampleRate, f.Channels)
	}
	dur := f.Duration()
	if dur <= 0 {
		return nil // empty frame, nothing to play
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	now := s.clock.Now()
	start := s.cursor
	var catchUp time.Duration
	if now > start {
		catchUp = now - start
		start = now
	}
	s.cursor = start + dur
	s.queue = append(s.queue, item{frame: f, start: start})

	if s.OnScheduled != nil {
		s.OnScheduled(start, catchUp)
	}

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Cursor returns the committed playback time: the clock offset at which the
// last accepted frame will finish.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Close stops the dispatch goroutine and discards queued frames. The sink
// is left open for its owner to close. Idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.idle
		return nil
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	close(s.done)
	<-s.idle
	return nil
}

func (s *Scheduler) dispatch() {
	defer close(s.idle)

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			it, ok := s.pop()
			if !ok {
				break
			}

			if delay := it.start - s.clock.Now(); delay > 0 {
				select {
				case <-s.done:
					return
				case <-s.clock.After(delay):
				}
			}

			out := s.norm.Normalize(it.frame)
			if len(out.Data) == 0 {
				continue
			}
			if err := s.sink.Write(out.Data); err != nil {
				slog.Error("playback: sink write failed", "err", err)
			}
		}
	}
}

func (s *Scheduler) pop() (item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return item{}, false
	}
	it := s.queue[0]
	s.queue = s.queue[1:]
	return it, true
}
