// Package session owns the lifecycle of one voice conversation: it dials
// the transport, opens the microphone, wires the capture and playback
// pipelines together and tears everything down in a safe order.
//
// At most one session is live at a time. Teardown always releases the
// microphone before closing the socket, so the device can never keep
// capturing into a dead connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KabeerThockchom/voxfolio/internal/capture"
	"github.com/KabeerThockchom/voxfolio/internal/control"
	"github.com/KabeerThockchom/voxfolio/internal/playback"
	"github.com/KabeerThockchom/voxfolio/internal/transport"
	"github.com/KabeerThockchom/voxfolio/pkg/audio"
)

var (
	// ErrAlreadyRunning is returned by Start when a session is live.
	ErrAlreadyRunning = errors.New("session: already running")

	// ErrNotRunning is returned by operations that need a live session.
	ErrNotRunning = errors.New("session: not running")
)

// Codec converts between raw PCM and wire frames. DecodeAudio returning a
// nil frame with a nil error means the payload was a valid non-audio
// frame. Satisfied by [frame.Codec].
type Codec interface {
	EncodeAudio(pcm []byte, sampleRate, channels int) ([]byte, error)
	DecodeAudio(data []byte) (*audio.Frame, error)
	Ready() bool
}

// SourceOpener opens a capture device. Injected so tests substitute mocks.
type SourceOpener func(audio.DeviceConfig) (audio.Source, error)

// SinkOpener opens a playback device.
type SinkOpener func(audio.Format) (audio.Sink, error)

// Config carries everything needed to establish one session.
type Config struct {
	Transport transport.Options
	Device    audio.DeviceConfig
	Output    audio.Format
}

// Deps are the controller's injected collaborators.
type Deps struct {
	Dial       transport.DialFunc
	OpenSource SourceOpener
	OpenSink   SinkOpener
	Codec      Codec
	Router     *control.Router

	// Clock overrides the playback scheduler's time source. Nil means
	// wall clock.
	Clock playback.Clock

	// OnScheduled is forwarded to the playback scheduler of every session.
	OnScheduled func(start, catchUp time.Duration)

	// Frame accounting hooks. All optional; must not block.
	OnFrameSent     func()
	OnFrameReceived func(kind string)
	OnFrameDropped  func(reason string)
}

// Controller drives the session state machine. All methods are safe for
// concurrent use; Start, Stop and Reconfigure are serialized against each
// other.
type Controller struct {
	deps Deps

	opMu sync.Mutex // serializes Start/Stop/Reconfigure

	mu    sync.Mutex
	state State
	cfg   Config
	id    string
	live  *liveSession

	// OnStateChange, when set, observes every transition. Called under the
	// state lock; must not call back into the controller.
	OnStateChange func(old, new State)
}

// liveSession bundles the resources of one established session.
type liveSession struct {
	tr       transport.Transport
	pipeline *capture.Pipeline
	sink     audio.Sink
	sched    *playback.Scheduler
	loopDone chan struct{}
}

// New creates an idle controller.
func New(deps Deps) (*Controller, error) {
	if deps.Dial == nil || deps.OpenSource == nil || deps.OpenSink == nil {
		return nil, errors.New("session: dial, source and sink openers are required")
	}
	if deps.Codec == nil {
		return nil, errors.New("session: codec is required")
	}
	if deps.Router == nil {
		deps.Router = control.NewRouter()
	}
	return &Controller{deps: deps, state: StateIdle}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ID returns the identifier of the current (or most recent) session.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Start establishes a session with the given configuration: dial first,
// then the microphone, so a failed dial never touches the device. Returns
// ErrAlreadyRunning if a session is live.
func (c *Controller) Start(ctx context.Context, cfg Config) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.startLocked(ctx, cfg)
}

func (c *Controller) startLocked(ctx context.Context, cfg Config) error {
	if !c.deps.Codec.Ready() {
		return errors.New("session: frame schema not loaded")
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	id := uuid.NewString()
	c.id = id
	c.cfg = cfg
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	log := slog.With("session_id", id)

	tr, err := c.deps.Dial(ctx, cfg.Transport)
	if err != nil {
		c.toIdle()
		return fmt.Errorf("session: dial: %w", err)
	}

	source, err := c.deps.OpenSource(cfg.Device)
	if err != nil {
		tr.Close()
		c.toIdle()
		return fmt.Errorf("session: open microphone: %w", err)
	}

	sink, err := c.deps.OpenSink(cfg.Output)
	if err != nil {
		source.Close()
		tr.Close()
		c.toIdle()
		return fmt.Errorf("session: open playback device: %w", err)
	}

	schedOpts := []playback.Option{}
	if c.deps.Clock != nil {
		schedOpts = append(schedOpts, playback.WithClock(c.deps.Clock))
	}
	sched := playback.New(sink, schedOpts...)
	sched.OnScheduled = c.deps.OnScheduled

	pipeline := capture.Start(source, tr, c.deps.Codec, capture.Config{
		SampleRate: cfg.Device.SampleRate,
		Channels:   cfg.Device.Channels,
		OnSent:     c.deps.OnFrameSent,
	})

	live := &liveSession{
		tr:       tr,
		pipeline: pipeline,
		sink:     sink,
		sched:    sched,
		loopDone: make(chan struct{}),
	}

	c.mu.Lock()
	c.live = live
	c.setStateLocked(StateActive)
	c.mu.Unlock()

	go c.eventLoop(live, log)

	log.Info("session started",
		"voice", cfg.Transport.Voice,
		"realtime", cfg.Transport.Realtime,
		"sample_rate", cfg.Device.SampleRate,
		"block_size", cfg.Device.BlockSize,
	)
	return nil
}

// Stop tears the session down: microphone first, then the socket, then the
// playback scheduler. A stop with no live session is a no-op.
func (c *Controller) Stop() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	c.mu.Lock()
	if c.state == StateIdle || c.live == nil {
		c.mu.Unlock()
		return nil
	}
	live := c.live
	c.setStateLocked(StateClosing)
	c.mu.Unlock()

	// Release the device before the socket so nothing captures into a
	// closed connection.
	micErr := live.pipeline.Stop()
	closeErr := live.tr.Close()
	<-live.loopDone
	live.sched.Close()
	sinkErr := live.sink.Close()

	c.mu.Lock()
	c.live = nil
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	slog.Info("session stopped", "session_id", c.ID())
	return errors.Join(micErr, closeErr, sinkErr)
}

// SetMuted toggles the microphone gate. Valid only on a live session;
// playback is unaffected either way.
func (c *Controller) SetMuted(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case muted && c.state == StateActive:
		c.live.pipeline.SetMuted(true)
		c.setStateLocked(StateMuted)
	case !muted && c.state == StateMuted:
		c.live.pipeline.SetMuted(false)
		c.setStateLocked(StateActive)
	case c.state == StateActive || c.state == StateMuted:
		// Already in the requested state.
	default:
		return ErrNotRunning
	}
	return nil
}

// Reconfigure stops the current session (if any) and starts a fresh one
// with the new configuration. There is never a moment with two live
// transports.
func (c *Controller) Reconfigure(ctx context.Context, cfg Config) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.stopLocked(); err != nil {
		slog.Warn("session: teardown during reconfigure", "err", err)
	}
	return c.startLocked(ctx, cfg)
}

// Config returns the configuration of the current (or most recent) session.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// eventLoop fans inbound transport traffic out to playback and control
// handling until the transport goes away.
func (c *Controller) eventLoop(live *liveSession, log *slog.Logger) {
	defer close(live.loopDone)

	for {
		select {
		case data, ok := <-live.tr.Binary():
			if !ok {
				c.transportGone(live, log)
				return
			}
			c.handleAudio(live, data, log)
		case data, ok := <-live.tr.Text():
			if !ok {
				c.transportGone(live, log)
				return
			}
			if c.deps.OnFrameReceived != nil {
				c.deps.OnFrameReceived("control")
			}
			c.deps.Router.Dispatch(data)
		case <-live.tr.Done():
			c.transportGone(live, log)
			return
		}
	}
}

func (c *Controller) handleAudio(live *liveSession, data []byte, log *slog.Logger) {
	if c.deps.OnFrameReceived != nil {
		c.deps.OnFrameReceived("audio")
	}
	f, err := c.deps.Codec.DecodeAudio(data)
	if err != nil {
		log.Warn("dropping undecodable frame", "err", err)
		c.dropped("undecodable")
		return
	}
	if f == nil {
		return // valid non-audio frame
	}
	if err := live.sched.Enqueue(*f); err != nil {
		if errors.Is(err, playback.ErrClosed) {
			return
		}
		log.Warn("dropping unplayable frame", "err", err)
		c.dropped("unplayable")
	}
}

func (c *Controller) dropped(reason string) {
	if c.deps.OnFrameDropped != nil {
		c.deps.OnFrameDropped(reason)
	}
}

// transportGone handles an unsolicited transport close. When a local Stop
// is already in flight it does nothing; Stop owns the teardown.
func (c *Controller) transportGone(live *liveSession, log *slog.Logger) {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateIdle || c.live != live {
		c.mu.Unlock()
		return
	}
	c.live = nil // claimed; a racing Stop becomes a no-op
	c.setStateLocked(StateClosing)
	c.mu.Unlock()

	if err := live.tr.Err(); err != nil {
		log.Error("transport failed", "err", err)
	} else {
		log.Info("transport closed by server")
	}

	live.pipeline.Stop()
	live.tr.Close()
	live.sched.Close()
	live.sink.Close()

	c.mu.Lock()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()
}

func (c *Controller) toIdle() {
	c.mu.Lock()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()
}

// setStateLocked transitions the state machine. Caller holds c.mu.
func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	old := c.state
	c.state = next
	if c.OnStateChange != nil {
		c.OnStateChange(old, next)
	}
}
