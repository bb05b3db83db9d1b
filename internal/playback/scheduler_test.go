package playback_test

import (
	"sync"
	"testing"
	"time"

	"github.com/KabeerThockchom/voxfolio/internal/playback"
	"github.com/KabeerThockchom/voxfolio/pkg/audio"
	"github.com/KabeerThockchom/voxfolio/pkg/audio/mock"
)

// fakeClock is a settable time source whose After fires immediately, so the
// dispatch goroutine never sleeps and tests assert on cursor arithmetic.
type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = d
}

func (c *fakeClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// pcmFrame builds a frame of n samples of 16-bit mono audio at 16 kHz,
// filled with the given sample value.
func pcmFrame(n int, value int16) audio.Frame {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = value
	}
	return audio.Frame{Data: audio.Int16ToBytes(samples), SampleRate: 16000, Channels: 1}
}

func waitForWrites(t *testing.T, sink *mock.Sink, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if sink.WriteCount() >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("sink never received %d writes", n)
}

func TestScheduler_BackToBackFramesDoNotOverlap(t *testing.T) {
	clock := &fakeClock{}
	sink := &mock.Sink{SinkFormat: audio.Format{SampleRate: 16000, Channels: 1}}

	var starts []time.Duration
	s := playback.New(sink, playback.WithClock(clock))
	s.OnScheduled = func(start, catchUp time.Duration) { starts = append(starts, start) }
	defer s.Close()

	// 512 samples at 16 kHz = 32 ms per frame.
	if err := s.Enqueue(pcmFrame(512, 100)); err != nil {
		t.Fatalf("Enqueue 1: %v", err)
	}
	if err := s.Enqueue(pcmFrame(512, 200)); err != nil {
		t.Fatalf("Enqueue 2: %v", err)
	}

	if len(starts) != 2 {
		t.Fatalf("got %d scheduled frames, want 2", len(starts))
	}
	if starts[0] != 0 {
		t.Errorf("first start: got %v, want 0", starts[0])
	}
	if starts[1] != 32*time.Millisecond {
		t.Errorf("second start: got %v, want 32ms (end of first frame)", starts[1])
	}
	if got := s.Cursor(); got != 64*time.Millisecond {
		t.Errorf("cursor: got %v, want 64ms", got)
	}
}

func TestScheduler_CursorCatchesUpAfterIdle(t *testing.T) {
	clock := &fakeClock{}
	sink := &mock.Sink{SinkFormat: audio.Format{SampleRate: 16000, Channels: 1}}

	var catchUps []time.Duration
	s := playback.New(sink, playback.WithClock(clock))
	s.OnScheduled = func(start, catchUp time.Duration) { catchUps = append(catchUps, catchUp) }
	defer s.Close()

	if err := s.Enqueue(pcmFrame(512, 1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Silence for a while: the wall clock races past the committed cursor.
	clock.Set(500 * time.Millisecond)

	if err := s.Enqueue(pcmFrame(512, 2)); err != nil {
		t.Fatalf("Enqueue after idle: %v", err)
	}

	// The second frame starts at now, not at the stale 32 ms cursor.
	if got := s.Cursor(); got != 532*time.Millisecond {
		t.Errorf("cursor: got %v, want 532ms", got)
	}
	if len(catchUps) != 2 || catchUps[0] != 0 || catchUps[1] != 468*time.Millisecond {
		t.Errorf("catch-ups: got %v, want [0 468ms]", catchUps)
	}
}

func TestScheduler_CorruptFrameLeavesCursorUnchanged(t *testing.T) {
	clock := &fakeClock{}
	sink := &mock.Sink{SinkFormat: audio.Format{SampleRate: 16000, Channels: 1}}
	s := playback.New(sink, playback.WithClock(clock))
	defer s.Close()

	if err := s.Enqueue(pcmFrame(512, 1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	before := s.Cursor()

	// Odd byte count cannot be 16-bit PCM.
	bad := audio.Frame{Data: []byte{1, 2, 3}, SampleRate: 16000, Channels: 1}
	if err := s.Enqueue(bad); err == nil {
		t.Fatal("expected error for odd-length frame")
	}

	// Truncated WAV header.
	notWav := audio.Frame{Data: []byte("RIFF\x00\x00"), SampleRate: 16000, Channels: 1}
	if err := s.Enqueue(notWav); err == nil {
		t.Fatal("expected error for truncated wav")
	}

	if got := s.Cursor(); got != before {
		t.Errorf("cursor moved from %v to %v on rejected frames", before, got)
	}

	// The stream keeps going afterwards.
	if err := s.Enqueue(pcmFrame(512, 2)); err != nil {
		t.Fatalf("Enqueue after corrupt: %v", err)
	}
	waitForWrites(t, sink, 2)
}

func TestScheduler_WAVPayloadUnwrapped(t *testing.T) {
	clock := &fakeClock{}
	sink := &mock.Sink{SinkFormat: audio.Format{SampleRate: 16000, Channels: 1}}
	s := playback.New(sink, playback.WithClock(clock))
	defer s.Close()

	pcm := audio.Int16ToBytes([]int16{10, 20, 30, 40})
	wav := audio.EncodeWAV(audio.Frame{Data: pcm, SampleRate: 16000, Channels: 1})

	// The envelope claims a different rate; the container wins.
	if err := s.Enqueue(audio.Frame{Data: wav, SampleRate: 8000, Channels: 2}); err != nil {
		t.Fatalf("Enqueue wav: %v", err)
	}

	waitForWrites(t, sink, 1)
	got := audio.BytesToInt16(sink.WrittenBytes())
	if len(got) != 4 || got[0] != 10 || got[3] != 40 {
		t.Errorf("sink received %v, want [10 20 30 40]", got)
	}
}

func TestScheduler_WritesInArrivalOrder(t *testing.T) {
	clock := &fakeClock{}
	sink := &mock.Sink{SinkFormat: audio.Format{SampleRate: 16000, Channels: 1}}
	s := playback.New(sink, playback.WithClock(clock))
	defer s.Close()

	for v := int16(1); v <= 5; v++ {
		if err := s.Enqueue(pcmFrame(4, v)); err != nil {
			t.Fatalf("Enqueue %d: %v", v, err)
		}
	}
	waitForWrites(t, sink, 5)

	for i, w := range sink.Writes[:5] {
		samples := audio.BytesToInt16(w)
		if samples[0] != int16(i+1) {
			t.Errorf("write %d carries value %d, want %d", i, samples[0], i+1)
		}
	}
}

func TestScheduler_NormalizesToSinkFormat(t *testing.T) {
	clock := &fakeClock{}
	sink := &mock.Sink{SinkFormat: audio.Format{SampleRate: 16000, Channels: 1}}
	s := playback.New(sink, playback.WithClock(clock))
	defer s.Close()

	// Stereo at 32 kHz: must arrive mono at 16 kHz.
	stereo := audio.Int16ToBytes([]int16{100, 100, 200, 200, 300, 300, 400, 400})
	if err := s.Enqueue(audio.Frame{Data: stereo, SampleRate: 32000, Channels: 2}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitForWrites(t, sink, 1)
	got := audio.BytesToInt16(sink.Writes[0])
	if len(got) != 2 {
		t.Fatalf("got %d samples after downmix+resample, want 2", len(got))
	}
}

func TestScheduler_CloseIdempotentAndRejectsEnqueue(t *testing.T) {
	sink := &mock.Sink{}
	s := playback.New(sink, playback.WithClock(&fakeClock{}))

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.Enqueue(pcmFrame(4, 1)); err != playback.ErrClosed {
		t.Errorf("Enqueue after close: got %v, want ErrClosed", err)
	}
	if sink.CallCountClose != 0 {
		t.Errorf("scheduler closed the sink; that is the owner's job")
	}
}
