package audio

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Normalizer converts inbound frames to a target output format. The playback
// scheduler runs every decoded frame through one before committing it to the
// output timeline, so the sink always sees a single fixed format.
//
// It logs once on the first format mismatch and once on the first corrupt
// frame. Create one per playback session; not for shared use across
// goroutines.
type Normalizer struct {
	Target Format

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Normalize converts frame to the target format. Frames already in the target
// format pass through unchanged (zero allocation). Corrupt frames (odd byte
// count) come back with empty Data; callers drop those.
// Downmix happens before resampling so multi-channel input is only resampled
// once.
func (n *Normalizer) Normalize(frame Frame) Frame {
	if len(frame.Data)%2 != 0 {
		n.warnedCorrupt.Do(func() {
			slog.Warn("audio normalizer: odd byte count in PCM data, dropping frame",
				"bytes", len(frame.Data),
				"sampleRate", frame.SampleRate,
				"channels", frame.Channels,
			)
		})
		return Frame{SampleRate: n.Target.SampleRate, Channels: n.Target.Channels}
	}

	if frame.SampleRate == n.Target.SampleRate && frame.Channels == n.Target.Channels {
		return frame
	}

	n.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: normalizing",
			"fromRate", frame.SampleRate, "fromChannels", frame.Channels,
			"toRate", n.Target.SampleRate, "toChannels", n.Target.Channels,
		)
	})

	pcm := frame.Data
	channels := frame.Channels

	if channels > 1 && n.Target.Channels == 1 {
		pcm = DownmixToMono(pcm, channels)
		channels = 1
	}
	if frame.SampleRate != n.Target.SampleRate {
		pcm = Resample(pcm, channels, frame.SampleRate, n.Target.SampleRate)
	}

	return Frame{
		Data:       pcm,
		SampleRate: n.Target.SampleRate,
		Channels:   channels,
	}
}

// DownmixToMono averages the interleaved channels of each PCM frame into a
// single mono sample. Arithmetic runs in int32 and the result is clamped to
// the int16 range. Input with fewer than two channels is returned unchanged.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels < 2 {
		return pcm
	}
	frames := len(pcm) / 2 / channels
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for c := range channels {
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[(i*channels+c)*2:])))
		}
		avg := sum / int32(channels)
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(avg)))
	}
	return out
}

// Resample converts interleaved 16-bit PCM from srcRate to dstRate using
// linear interpolation, preserving the channel count. If the rates match or
// either rate is non-positive, the input is returned unchanged.
func Resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || channels <= 0 {
		return pcm
	}
	srcFrames := len(pcm) / 2 / channels
	if srcFrames < 1 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*channels*2)
	ratio := float64(srcRate) / float64(dstRate)

	at := func(frame, ch int) int16 {
		return int16(binary.LittleEndian.Uint16(pcm[(frame*channels+ch)*2:]))
	}

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		for c := range channels {
			s0 := at(srcIdx, c)
			s1 := s0
			if srcIdx+1 < srcFrames {
				s1 = at(srcIdx+1, c)
			}
			v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			binary.LittleEndian.PutUint16(out[(i*channels+c)*2:], uint16(v))
		}
	}
	return out
}
