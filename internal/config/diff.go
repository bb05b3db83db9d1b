package config

// ConfigDiff describes what changed between two configs and how disruptive
// applying the change is.
type ConfigDiff struct {
	// LogLevelChanged means only the logger needs adjusting.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SessionChanged means the session parameters (voice, realtime mode,
	// log streaming, phone number) differ. Applying this requires a
	// session restart, not a process restart.
	SessionChanged bool

	// AudioChanged means device parameters differ. Also applied via
	// session restart: devices are reopened on Start.
	AudioChanged bool

	// ServerChanged means endpoints or the metrics address differ; these
	// take effect only on process restart.
	ServerChanged bool
}

// RequiresSessionRestart reports whether a live session must be
// re-established for the new config to take effect.
func (d ConfigDiff) RequiresSessionRestart() bool {
	return d.SessionChanged || d.AudioChanged
}

// Any reports whether anything at all changed.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.SessionChanged || d.AudioChanged || d.ServerChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Session != new.Session {
		d.SessionChanged = true
	}
	if old.Audio != new.Audio {
		d.AudioChanged = true
	}
	if old.Server.WSURL != new.Server.WSURL ||
		old.Server.APIBaseURL != new.Server.APIBaseURL ||
		old.Server.MetricsAddr != new.Server.MetricsAddr {
		d.ServerChanged = true
	}
	return d
}
