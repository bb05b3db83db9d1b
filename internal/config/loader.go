package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.WSURL == "" {
		errs = append(errs, errors.New("server.ws_url is required"))
	} else if u, err := url.Parse(cfg.Server.WSURL); err != nil {
		errs = append(errs, fmt.Errorf("server.ws_url %q is not a valid URL: %w", cfg.Server.WSURL, err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("server.ws_url %q must use the ws or wss scheme", cfg.Server.WSURL))
	}
	if cfg.Server.APIBaseURL != "" {
		if u, err := url.Parse(cfg.Server.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("server.api_base_url %q must be an http(s) URL", cfg.Server.APIBaseURL))
		}
	}
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Session — unknown voices are a warning, not an error: the backend's
	// voice list evolves faster than this client.
	if cfg.Session.Voice != "" && !slices.Contains(KnownVoices, cfg.Session.Voice) {
		slog.Warn("unknown voice — may be a typo or a newly added backend voice",
			"voice", cfg.Session.Voice,
			"known", KnownVoices,
		)
	}
	if cfg.Session.PhoneNumber == "" {
		errs = append(errs, errors.New("session.phonenumber is required"))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d must be 1 or 2", cfg.Audio.Channels))
	}
	if cfg.Audio.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.block_size %d must be positive", cfg.Audio.BlockSize))
	}

	// Schema
	if cfg.Schema.Path != "" {
		if _, err := os.Stat(cfg.Schema.Path); err != nil {
			errs = append(errs, fmt.Errorf("schema.path %q: %w", cfg.Schema.Path, err))
		}
	}

	// Logs
	if cfg.Logs.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("logs.retention_days %d must not be negative", cfg.Logs.RetentionDays))
	}

	return errors.Join(errs...)
}
