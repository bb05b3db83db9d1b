// Package miniaudio implements the [audio.Source] and [audio.Sink] device
// interfaces on top of the miniaudio library via github.com/gen2brain/malgo.
//
// The capture device delivers float32 blocks of exactly the configured block
// size; the playback device pulls int16 PCM from an internal ring buffer and
// plays silence when the buffer is empty. Voice-processing toggles in
// [audio.DeviceConfig] (echo cancellation, noise suppression, auto gain) are
// applied by the OS backend where available; miniaudio itself does not
// implement them, so they are requested on a best-effort basis.
package miniaudio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/KabeerThockchom/voxfolio/pkg/audio"
)

// sourceBuffer is the handoff-channel capacity between the device thread and
// the pipeline goroutine. Roughly half a second of 512-sample blocks at
// 16 kHz.
const sourceBuffer = 16

// Source is a malgo-backed microphone stream.
type Source struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	blocks chan []float32

	mu        sync.Mutex
	closed    bool
	dropped   int
	warnedMut sync.Once

	// partial accumulates samples until a full block is available, so the
	// channel only ever carries blocks of exactly cfg.BlockSize samples.
	partial []float32
	block   int
}

var _ audio.Source = (*Source)(nil)

// OpenSource initialises a capture device with the requested format and
// starts it. Device and backend failures map to
// [audio.ErrDeviceUnavailable]; explicit OS permission refusals also surface
// as that sentinel since miniaudio does not distinguish the two cases on all
// platforms.
func OpenSource(cfg audio.DeviceConfig) (*Source, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("miniaudio: init context: %w: %v", audio.ErrDeviceUnavailable, err)
	}

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatF32
	dc.Capture.Channels = uint32(cfg.Channels)
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.PeriodSizeInFrames = uint32(cfg.BlockSize)

	s := &Source{
		ctx:    mctx,
		blocks: make(chan []float32, sourceBuffer),
		block:  cfg.BlockSize,
	}

	onRecv := func(_, input []byte, frameCount uint32) {
		s.deliver(bytesToFloat32(input))
	}

	device, err := malgo.InitDevice(mctx.Context, dc, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("miniaudio: init capture device: %w: %v", audio.ErrDeviceUnavailable, err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("miniaudio: start capture device: %w: %v", audio.ErrDeviceUnavailable, err)
	}
	return s, nil
}

// deliver runs on the miniaudio device thread. It slices incoming samples
// into fixed-size blocks and hands them to the channel without ever blocking
// the device thread — when the consumer falls behind, the newest block is
// dropped.
func (s *Source) deliver(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.partial = append(s.partial, samples...)
	for len(s.partial) >= s.block {
		blk := make([]float32, s.block)
		copy(blk, s.partial[:s.block])
		s.partial = s.partial[s.block:]

		select {
		case s.blocks <- blk:
		default:
			s.dropped++
			s.warnedMut.Do(func() {
				slog.Warn("miniaudio: capture consumer falling behind, dropping blocks")
			})
		}
	}
}

// Blocks implements [audio.Source].
func (s *Source) Blocks() <-chan []float32 {
	return s.blocks
}

// Close stops and releases the device. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dropped := s.dropped
	s.mu.Unlock()

	s.device.Uninit()
	err := s.ctx.Uninit()
	s.ctx.Free()
	close(s.blocks)

	if dropped > 0 {
		slog.Warn("miniaudio: capture blocks dropped during session", "count", dropped)
	}
	if err != nil {
		return fmt.Errorf("miniaudio: uninit context: %w", err)
	}
	return nil
}

func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
