package audio

import "errors"

// Device errors surfaced by [Source] and [Sink] implementations. The session
// controller reports these to the user and returns to the idle state — it
// never retries silently.
var (
	// ErrPermissionDenied indicates the platform refused microphone access.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrDeviceUnavailable indicates no usable audio device was found or the
	// device could not be initialised.
	ErrDeviceUnavailable = errors.New("audio: device unavailable")
)

// DeviceConfig describes the capture format requested from a [Source].
type DeviceConfig struct {
	// SampleRate in Hz. The session controller requests 16000.
	SampleRate int

	// Channels requested. Always 1 for the capture path.
	Channels int

	// BlockSize is the number of samples delivered per capture block.
	// Smaller blocks lower latency but raise per-block encode+send overhead.
	BlockSize int

	// Voice-processing toggles. Device backends apply these where the
	// platform supports them and ignore them otherwise.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Source is an open microphone stream delivering fixed-size blocks of
// float32 samples in [-1, 1], in strict capture order.
//
// The capture device runs on its own thread; Blocks is the explicit handoff
// queue into the single-threaded encode+send path. The channel is closed when
// the device stops.
type Source interface {
	// Blocks returns the channel of captured sample blocks. Each block has
	// exactly DeviceConfig.BlockSize samples.
	Blocks() <-chan []float32

	// Close stops the device and releases it. Safe to call more than once.
	Close() error
}

// Sink is an open audio output device. The playback scheduler writes
// little-endian int16 PCM at the sink's fixed sample rate; the sink plays
// silence when no data is pending.
type Sink interface {
	// Write appends PCM to the output stream. It must not block for longer
	// than the duration of the data being written.
	Write(pcm []byte) error

	// Format returns the sink's fixed output format.
	Format() Format

	// Close stops the device and releases it. Safe to call more than once.
	Close() error
}
