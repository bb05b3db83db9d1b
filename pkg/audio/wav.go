package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotWAV reports that a payload does not start with a RIFF/WAVE header.
// Callers typically fall back to treating the payload as raw PCM.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE payload")

// IsWAV reports whether b starts with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

// DecodeWAV extracts 16-bit linear PCM from a WAV container. The backend may
// wrap its audio payloads in a WAV header; the playback path sniffs the
// container and unwraps it here. Only uncompressed 16-bit PCM (format tag 1)
// is supported — anything else is a decode error, handled per-frame by the
// caller.
func DecodeWAV(b []byte) (Frame, error) {
	if !IsWAV(b) {
		return Frame{}, ErrNotWAV
	}

	var (
		format   Frame
		haveFmt  bool
		haveData bool
	)

	// Walk the chunk list after the 12-byte RIFF header.
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(b) {
			return Frame{}, fmt.Errorf("audio: truncated WAV chunk %q", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Frame{}, fmt.Errorf("audio: short fmt chunk (%d bytes)", size)
			}
			tag := binary.LittleEndian.Uint16(b[body:])
			channels := int(binary.LittleEndian.Uint16(b[body+2:]))
			rate := int(binary.LittleEndian.Uint32(b[body+4:]))
			bits := binary.LittleEndian.Uint16(b[body+14:])
			if tag != 1 || bits != 16 {
				return Frame{}, fmt.Errorf("audio: unsupported WAV format (tag=%d bits=%d)", tag, bits)
			}
			if channels <= 0 || rate <= 0 {
				return Frame{}, fmt.Errorf("audio: invalid WAV format (channels=%d rate=%d)", channels, rate)
			}
			format.Channels = channels
			format.SampleRate = rate
			haveFmt = true
		case "data":
			format.Data = b[body : body+size]
			haveData = true
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt || !haveData {
		return Frame{}, errors.New("audio: WAV missing fmt or data chunk")
	}
	return format, nil
}

// EncodeWAV wraps 16-bit PCM in a minimal WAV container. Used by tests and
// by tooling that captures backend replies to disk.
func EncodeWAV(f Frame) []byte {
	dataLen := len(f.Data)
	out := make([]byte, 44+dataLen)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataLen))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(f.SampleRate))
	byteRate := f.SampleRate * f.Channels * 2
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(f.Channels*2))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataLen))
	copy(out[44:], f.Data)
	return out
}
