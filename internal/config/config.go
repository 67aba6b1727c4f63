// Package config defines service configuration structures and loading hooks.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// JWTSecret signs and verifies bearer tokens. Must be set in production.
	JWTSecret string `koanf:"jwt_secret"`

	// StreamBuffer bounds each subscriber's notice channel.
	StreamBuffer int `koanf:"stream_buffer"`

	// ShutdownTimeoutMS bounds graceful HTTP shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`

	// ReadHeaderTimeoutMS guards against slow-header clients.
	ReadHeaderTimeoutMS int `koanf:"read_header_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		JWTSecret:           "dev-secret",
		StreamBuffer:        64,
		ShutdownTimeoutMS:   5_000,
		ReadHeaderTimeoutMS: 5_000,
	}
}
