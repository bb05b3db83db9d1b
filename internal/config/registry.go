package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KabeerThockchom/voxfolio/pkg/audio"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: audio backend not registered")

// Registry maps audio backend names to device constructors. The main binary
// registers the real device backend; tests register in-memory ones. It is
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]func(audio.DeviceConfig) (audio.Source, error)
	sinks   map[string]func(audio.Format) (audio.Sink, error)
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]func(audio.DeviceConfig) (audio.Source, error)),
		sinks:   make(map[string]func(audio.Format) (audio.Sink, error)),
	}
}

// RegisterSource registers a capture device constructor under name.
// Re-registering a name replaces the previous constructor.
func (r *Registry) RegisterSource(name string, fn func(audio.DeviceConfig) (audio.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = fn
}

// RegisterSink registers a playback device constructor under name.
func (r *Registry) RegisterSink(name string, fn func(audio.Format) (audio.Sink, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = fn
}

// CreateSource opens a capture device using the backend registered under name.
func (r *Registry) CreateSource(name string, cfg audio.DeviceConfig) (audio.Source, error) {
	r.mu.RLock()
	fn, ok := r.sources[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source backend %q: %w", name, ErrBackendNotRegistered)
	}
	return fn(cfg)
}

// CreateSink opens a playback device using the backend registered under name.
func (r *Registry) CreateSink(name string, format audio.Format) (audio.Sink, error) {
	r.mu.RLock()
	fn, ok := r.sinks[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sink backend %q: %w", name, ErrBackendNotRegistered)
	}
	return fn(format)
}

// SourceNames returns the registered capture backend names.
func (r *Registry) SourceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// DeviceConfig converts the audio section into the device-open parameters.
func (a AudioConfig) DeviceConfig() audio.DeviceConfig {
	return audio.DeviceConfig{
		SampleRate:       a.SampleRate,
		Channels:         a.Channels,
		BlockSize:        a.BlockSize,
		EchoCancellation: a.EchoCancellation,
		NoiseSuppression: a.NoiseSuppression,
		AutoGainControl:  a.AutoGainControl,
	}
}

// Format returns the playback format matching the audio section.
func (a AudioConfig) Format() audio.Format {
	return audio.Format{SampleRate: a.SampleRate, Channels: a.Channels}
}
