// Package config provides the configuration schema, loader, device registry
// and file watcher for the voxfolio voice client.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Default audio parameters. The backend's speech pipeline expects 16 kHz
// mono and 512-sample capture blocks; override only against a backend that
// negotiates something else.
const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	DefaultBlockSize  = 512
)

// Voices accepted by the backend's TTS stage.
var KnownVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "sage", "shimmer", "verse"}

// Config is the root configuration structure for voxfolio.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Audio   AudioConfig   `yaml:"audio"`
	Schema  SchemaConfig  `yaml:"schema"`
	Logs    LogsConfig    `yaml:"logs"`
}

// ServerConfig holds the backend endpoints and local observability settings.
type ServerConfig struct {
	// WSURL is the backend's WebSocket endpoint (e.g., "ws://localhost:8000/ws").
	WSURL string `yaml:"ws_url"`

	// APIBaseURL is the backend's REST root (e.g., "http://localhost:8000").
	APIBaseURL string `yaml:"api_base_url"`

	// MetricsAddr is the local address serving Prometheus metrics
	// (e.g., ":9090"). Empty disables the metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// SessionConfig holds the per-session parameters sent to the backend when
// the WebSocket is established.
type SessionConfig struct {
	// PhoneNumber identifies the user to the backend and keys its
	// connection registry.
	PhoneNumber string `yaml:"phonenumber"`

	// Voice selects the agent's TTS voice (e.g., "ash").
	Voice string `yaml:"voice"`

	// LogNeeded asks the backend to stream session log events.
	LogNeeded bool `yaml:"log_needed"`

	// Realtime selects the backend's realtime speech pipeline instead of
	// the cascaded one.
	Realtime bool `yaml:"realtime"`
}

// AudioConfig holds capture device parameters.
type AudioConfig struct {
	// Backend selects the audio device implementation registered in the
	// [Registry]. Default: "miniaudio".
	Backend string `yaml:"backend"`

	// SampleRate of captured and played audio, in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Channels of captured audio.
	Channels int `yaml:"channels"`

	// BlockSize is the number of samples per capture block.
	BlockSize int `yaml:"block_size"`

	// Processing toggles forwarded to the capture device where supported.
	EchoCancellation bool `yaml:"echo_cancellation"`
	NoiseSuppression bool `yaml:"noise_suppression"`
	AutoGainControl  bool `yaml:"auto_gain_control"`
}

// SchemaConfig locates the protobuf frame schema.
type SchemaConfig struct {
	// Path to a serialized FileDescriptorSet describing the wire frames.
	// Empty means the compiled-in schema is used.
	Path string `yaml:"path"`
}

// LogsConfig controls local persistence of session logs.
type LogsConfig struct {
	// Enabled turns the local SQLite log store on.
	Enabled bool `yaml:"enabled"`

	// Path to the SQLite database. Empty means the per-user default under
	// the XDG data directory.
	Path string `yaml:"path"`

	// RetentionDays prunes entries older than this many days at startup.
	// Zero keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// applyDefaults fills zero-valued fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = "miniaudio"
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = DefaultChannels
	}
	if cfg.Audio.BlockSize == 0 {
		cfg.Audio.BlockSize = DefaultBlockSize
	}
	if cfg.Session.Voice == "" {
		cfg.Session.Voice = "ash"
	}
}
