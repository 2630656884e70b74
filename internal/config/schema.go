package config

import (
	"strings"
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version int           `yaml:"version"`
	Driver  DriverConfig  `yaml:"driver"`
	Mapping MappingConfig `yaml:"mapping"`
	Logging LoggingConfig `yaml:"logging"`
}

// DriverConfig selects and tunes the transport
type DriverConfig struct {
	// URI scheme picks the driver: bolt://, neo4j:// (and +s/+ssc variants)
	// use the Bolt driver; file: and memory: use the embedded store
	URI      string `yaml:"uri"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`

	MaxConnectionPoolSize   int      `yaml:"max_connection_pool_size"`
	ConnectionTimeout       Duration `yaml:"connection_timeout"`
	MaxTransactionRetryTime Duration `yaml:"max_transaction_retry_time"`
	ConnectRetries          int      `yaml:"connect_retries"`
}

// Scheme returns the URI scheme without the "://" or ":" suffix
func (d DriverConfig) Scheme() string {
	if i := strings.Index(d.URI, "://"); i >= 0 {
		return strings.ToLower(d.URI[:i])
	}
	if i := strings.Index(d.URI, ":"); i >= 0 {
		return strings.ToLower(d.URI[:i])
	}
	return ""
}

// IsBolt reports whether the URI targets a Bolt server
func (d DriverConfig) IsBolt() bool {
	switch d.Scheme() {
	case "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc":
		return true
	}
	return false
}

// EmbeddedPath returns the on-disk location for file: URIs, or ":memory:"
func (d DriverConfig) EmbeddedPath() string {
	switch d.Scheme() {
	case "memory":
		return ":memory:"
	case "file":
		path := strings.TrimPrefix(d.URI, "file:")
		path = strings.TrimPrefix(path, "//")
		if path == "" {
			return ":memory:"
		}
		return path
	}
	return d.URI
}

// MappingConfig holds mapper behavior
type MappingConfig struct {
	AutoIndex AutoIndex `yaml:"auto_index"`
	// LoadDepth is the default hydration depth; -1 loads the whole reachable graph
	LoadDepth int `yaml:"load_depth"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
