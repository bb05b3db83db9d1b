package config_test

import (
	"errors"
	"testing"

	"github.com/KabeerThockchom/voxfolio/internal/config"
	"github.com/KabeerThockchom/voxfolio/pkg/audio"
	"github.com/KabeerThockchom/voxfolio/pkg/audio/mock"
)

func TestRegistry_CreateSource(t *testing.T) {
	r := config.NewRegistry()

	var gotCfg audio.DeviceConfig
	r.RegisterSource("mock", func(cfg audio.DeviceConfig) (audio.Source, error) {
		gotCfg = cfg
		return mock.NewSource(1), nil
	})

	src, err := r.CreateSource("mock", audio.DeviceConfig{SampleRate: 16000, BlockSize: 512})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	defer src.Close()

	if gotCfg.BlockSize != 512 {
		t.Errorf("constructor received %+v", gotCfg)
	}
}

func TestRegistry_UnknownBackend(t *testing.T) {
	r := config.NewRegistry()
	if _, err := r.CreateSource("jack", audio.DeviceConfig{}); !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("got %v, want ErrBackendNotRegistered", err)
	}
	if _, err := r.CreateSink("jack", audio.Format{}); !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("got %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_CreateSink(t *testing.T) {
	r := config.NewRegistry()
	r.RegisterSink("mock", func(f audio.Format) (audio.Sink, error) {
		return &mock.Sink{SinkFormat: f}, nil
	})

	sink, err := r.CreateSink("mock", audio.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("CreateSink: %v", err)
	}
	defer sink.Close()

	if got := sink.Format(); got.SampleRate != 16000 {
		t.Errorf("sink format: got %+v", got)
	}
}

func TestAudioConfig_Conversions(t *testing.T) {
	a := config.AudioConfig{SampleRate: 16000, Channels: 1, BlockSize: 512, NoiseSuppression: true}

	dc := a.DeviceConfig()
	if dc.SampleRate != 16000 || dc.BlockSize != 512 || !dc.NoiseSuppression {
		t.Errorf("DeviceConfig: got %+v", dc)
	}
	f := a.Format()
	if f.SampleRate != 16000 || f.Channels != 1 {
		t.Errorf("Format: got %+v", f)
	}
}
