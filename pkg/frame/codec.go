// Package frame implements the binary envelope shared with the
// portfolio-analysis backend: a versioned protobuf schema whose `Frame`
// message carries exactly one variant, of which only `audio` is relevant to
// the streaming pipeline.
//
// The schema is a deployment artifact, not generated code. A [Codec] starts
// empty and must be loaded exactly once — from a compiled
// FileDescriptorSet on disk ([Codec.LoadFile]) or from the built-in
// descriptor ([Codec.LoadBuiltin]) — before the first encode or decode.
// Encode/decode against an unloaded codec fails with [ErrNotReady]; the
// application treats a failed load as fatal to the audio subsystem only.
package frame

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/KabeerThockchom/voxfolio/pkg/audio"
)

var (
	// ErrNotReady is returned by encode/decode before a schema is loaded.
	ErrNotReady = errors.New("frame: schema not loaded")

	// ErrAlreadyLoaded is returned by a second load attempt. The schema
	// loads exactly once per codec lifetime.
	ErrAlreadyLoaded = errors.New("frame: schema already loaded")

	// ErrDecode wraps all per-message decode failures (malformed or
	// truncated input). Callers drop the frame and continue; one corrupt
	// frame never terminates a session.
	ErrDecode = errors.New("frame: decode failed")
)

// Wire names within the schema. The envelope follows the pipecat frames
// contract used by the backend.
const (
	frameMessageName  protoreflect.FullName = "pipecat.Frame"
	audioVariantName  protoreflect.Name     = "audio"
	audioBytesField   protoreflect.Name     = "audio"
	sampleRateField   protoreflect.Name     = "sample_rate"
	numChannelsField  protoreflect.Name     = "num_channels"
)

// schema holds the resolved descriptors. Immutable after load.
type schema struct {
	frameDesc  protoreflect.MessageDescriptor
	audioDesc  protoreflect.MessageDescriptor
	audioField protoreflect.FieldDescriptor
	fAudio     protoreflect.FieldDescriptor
	fRate      protoreflect.FieldDescriptor
	fChannels  protoreflect.FieldDescriptor
}

// Codec encodes and decodes audio frame envelopes. The zero value is valid
// but not ready; call one of the Load methods once before use. All methods
// are safe for concurrent use after load.
type Codec struct {
	loadMu sync.Mutex
	sch    atomic.Pointer[schema]
}

// Load resolves the schema from a FileDescriptorSet. It fails with
// [ErrAlreadyLoaded] on a second call and with a descriptive error when the
// set does not contain the expected envelope shape.
func (c *Codec) Load(fds *descriptorpb.FileDescriptorSet) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if c.sch.Load() != nil {
		return ErrAlreadyLoaded
	}

	files, err := protodesc.NewFiles(fds)
	if err != nil {
		return fmt.Errorf("frame: build descriptor registry: %w", err)
	}

	d, err := files.FindDescriptorByName(frameMessageName)
	if err != nil {
		return fmt.Errorf("frame: schema has no %s message: %w", frameMessageName, err)
	}
	frameDesc, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return fmt.Errorf("frame: %s is not a message", frameMessageName)
	}

	audioField := frameDesc.Fields().ByName(audioVariantName)
	if audioField == nil || audioField.Kind() != protoreflect.MessageKind {
		return fmt.Errorf("frame: %s has no audio message variant", frameMessageName)
	}
	audioDesc := audioField.Message()

	s := &schema{
		frameDesc:  frameDesc,
		audioDesc:  audioDesc,
		audioField: audioField,
		fAudio:     audioDesc.Fields().ByName(audioBytesField),
		fRate:      audioDesc.Fields().ByName(sampleRateField),
		fChannels:  audioDesc.Fields().ByName(numChannelsField),
	}
	if s.fAudio == nil || s.fAudio.Kind() != protoreflect.BytesKind {
		return fmt.Errorf("frame: audio variant missing bytes field %q", audioBytesField)
	}
	if s.fRate == nil || s.fChannels == nil {
		return fmt.Errorf("frame: audio variant missing %q or %q", sampleRateField, numChannelsField)
	}

	c.sch.Store(s)
	return nil
}

// LoadFile reads a compiled FileDescriptorSet from path and loads it.
func (c *Codec) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("frame: read schema %q: %w", path, err)
	}
	fds := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, fds); err != nil {
		return fmt.Errorf("frame: parse schema %q: %w", path, err)
	}
	return c.Load(fds)
}

// LoadBuiltin loads the compiled-in descriptor equivalent to the deployed
// frames.proto, for deployments that ship no schema file.
func (c *Codec) LoadBuiltin() error {
	return c.Load(BuiltinDescriptorSet())
}

// Ready reports whether the schema has been loaded.
func (c *Codec) Ready() bool {
	return c.sch.Load() != nil
}

// EncodeAudio serialises one audio frame envelope from raw little-endian
// 16-bit PCM and its format metadata.
func (c *Codec) EncodeAudio(pcm []byte, sampleRate, channels int) ([]byte, error) {
	s := c.sch.Load()
	if s == nil {
		return nil, ErrNotReady
	}

	am := dynamicpb.NewMessage(s.audioDesc)
	am.Set(s.fAudio, protoreflect.ValueOfBytes(pcm))
	am.Set(s.fRate, protoreflect.ValueOfUint32(uint32(sampleRate)))
	am.Set(s.fChannels, protoreflect.ValueOfUint32(uint32(channels)))

	msg := dynamicpb.NewMessage(s.frameDesc)
	msg.Set(s.audioField, protoreflect.ValueOfMessage(am))

	out, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("frame: encode: %w", err)
	}
	return out, nil
}

// DecodeAudio parses one envelope. A structurally valid envelope carrying a
// non-audio variant returns (nil, nil) — not an error. Malformed input
// returns an error wrapping [ErrDecode].
func (c *Codec) DecodeAudio(data []byte) (*audio.Frame, error) {
	s := c.sch.Load()
	if s == nil {
		return nil, ErrNotReady
	}

	msg := dynamicpb.NewMessage(s.frameDesc)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if !msg.Has(s.audioField) {
		return nil, nil
	}

	am := msg.Get(s.audioField).Message()
	pcm := am.Get(s.fAudio).Bytes()
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("%w: odd PCM byte count %d", ErrDecode, len(pcm))
	}

	return &audio.Frame{
		Data:       pcm,
		SampleRate: int(am.Get(s.fRate).Uint()),
		Channels:   int(am.Get(s.fChannels).Uint()),
	}, nil
}
