package audio

import "time"

// Frame is one discrete, independently decodable chunk of audio plus its
// format metadata. Frames are the atomic unit of the streaming pipeline:
// the capture path builds one per microphone block and the playback path
// receives one per inbound transport message.
type Frame struct {
	// Data holds little-endian 16-bit signed PCM. Always an even number of
	// bytes; Data is never mutated after construction.
	Data []byte

	// SampleRate in Hz. Fixed per session (16000 on the capture path).
	SampleRate int

	// Channels is the interleaved channel count. 1 on the capture path.
	Channels int
}

// Samples returns the number of samples per channel carried by the frame.
func (f Frame) Samples() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Data) / 2 / f.Channels
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}
