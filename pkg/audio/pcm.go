// Package audio provides the PCM sample codec, format normalisation, and the
// capture/playback device abstractions used by the Voxfolio streaming
// pipeline.
//
// The two device abstractions are:
//
//   - [Source] — a microphone delivering fixed-size float32 sample blocks.
//   - [Sink] — an output device consuming little-endian int16 PCM.
//
// Concrete implementations live in device-specific subpackages (e.g.
// audio/miniaudio); audio/mock provides in-memory doubles for tests.
package audio

import (
	"encoding/binary"
	"math"
)

// EncodeS16LE converts float32 samples in [-1, 1] to little-endian 16-bit
// signed PCM. Samples are clamped to [-1, 1] first. Negative samples scale
// by 32768 and non-negative by 32767 — the asymmetry avoids overflow at the
// positive rail. NaN samples encode as 0.
func EncodeS16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sampleToS16(s)))
	}
	return out
}

// DecodeS16LE converts little-endian 16-bit signed PCM back to float32
// samples in [-1, 1], using the inverse of the [EncodeS16LE] scaling.
// A trailing odd byte is ignored.
func DecodeS16LE(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}

func sampleToS16(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// Int16ToBytes converts int16 samples to their little-endian byte layout.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 converts little-endian PCM bytes to int16 samples.
// A trailing odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
