package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/KabeerThockchom/voxfolio/pkg/audio"
)

// Sink is a malgo-backed output device. The device callback drains an
// internal buffer; when the buffer runs dry the output is silence, which is
// exactly what the playback scheduler expects between scheduled frames.
type Sink struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	format audio.Format

	mu      sync.Mutex
	pending []byte
	closed  bool
}

var _ audio.Sink = (*Sink)(nil)

// OpenSink initialises a playback device at the given format and starts it.
func OpenSink(format audio.Format) (*Sink, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w: %v", audio.ErrDeviceUnavailable, err)
	}

	dc := malgo.DefaultDeviceConfig(malgo.Playback)
	dc.Playback.Format = malgo.FormatS16
	dc.Playback.Channels = uint32(format.Channels)
	dc.SampleRate = uint32(format.SampleRate)
	dc.Alsa.NoMMap = 1

	s := &Sink{ctx: mctx, format: format}

	onSend := func(output, _ []byte, frameCount uint32) {
		s.drain(output)
	}

	device, err := malgo.InitDevice(mctx.Context, dc, malgo.DeviceCallbacks{Data: onSend})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("miniaudio: init playback device: %w: %v", audio.ErrDeviceUnavailable, err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("miniaudio: start playback device: %w: %v", audio.ErrDeviceUnavailable, err)
	}
	return s, nil
}

// drain runs on the miniaudio device thread. Unfilled output remains zeroed
// (silence).
func (s *Sink) drain(output []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(output, s.pending)
	s.pending = s.pending[n:]
}

// Write implements [audio.Sink].
func (s *Sink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("miniaudio: write on closed sink")
	}
	s.pending = append(s.pending, pcm...)
	return nil
}

// Format implements [audio.Sink].
func (s *Sink) Format() audio.Format {
	return s.format
}

// Close stops and releases the device. Safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	s.device.Uninit()
	err := s.ctx.Uninit()
	s.ctx.Free()
	if err != nil {
		return fmt.Errorf("miniaudio: uninit context: %w", err)
	}
	return nil
}
