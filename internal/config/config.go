// Package config provides configuration management for graphogm.
//
// The config file describes how to reach the graph database and how the
// mapper behaves on top of it:
// - driver: which transport to use (bolt or embedded) and its credentials
// - mapping: index handling and default load depth
// - logging: level and output format
//
// Load looks for the file in the order Locations reports:
//  1. $GRAPHOGM_CONFIG
//  2. ./graphogm.yaml
//  3. graphogm/config.yaml under the user config dir ($XDG_CONFIG_HOME or ~/.config)
//  4. /etc/graphogm/config.yaml
//
// GRAPHOGM_URI, GRAPHOGM_USERNAME and GRAPHOGM_PASSWORD override the
// driver settings of whichever file is used.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultURI points at an in-process store so nothing needs to be running
	DefaultURI = "memory:"
	// DefaultLoadDepth is the number of hops hydrated around a loaded entity
	DefaultLoadDepth = 1

	// EnvConfigPath names an explicit config file
	EnvConfigPath = "GRAPHOGM_CONFIG"
	// EnvURI overrides driver.uri
	EnvURI = "GRAPHOGM_URI"
	// EnvUsername overrides driver.username
	EnvUsername = "GRAPHOGM_USERNAME"
	// EnvPassword overrides driver.password
	EnvPassword = "GRAPHOGM_PASSWORD"

	// ConfigFileName is the file looked for in the working directory
	ConfigFileName = "graphogm.yaml"
	// ConfigDirName is the directory under the user and system config dirs
	ConfigDirName = "graphogm"
)

// Location is one place Load looks for the config file
type Location struct {
	Source string // env, workdir, user or system
	Path   string
}

// Locations lists where Load looks, first match wins. The user location is
// missing when neither $XDG_CONFIG_HOME nor $HOME is set.
func Locations() []Location {
	var locs []Location
	if path := os.Getenv(EnvConfigPath); path != "" {
		locs = append(locs, Location{Source: "env", Path: path})
	}
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		locs = append(locs, Location{Source: "workdir", Path: abs})
	}
	if dir, err := os.UserConfigDir(); err == nil {
		locs = append(locs, Location{Source: "user", Path: filepath.Join(dir, ConfigDirName, "config.yaml")})
	}
	return append(locs, Location{Source: "system", Path: filepath.Join("/etc", ConfigDirName, "config.yaml")})
}

// FindConfigPath returns the first location holding a regular file, or ""
func FindConfigPath() string {
	for _, loc := range Locations() {
		if info, err := os.Stat(loc.Path); err == nil && info.Mode().IsRegular() {
			return loc.Path
		}
	}
	return ""
}

// DefaultConfigPath is where a new config file goes: the user location, or
// the working directory when there is no user config dir
func DefaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, ConfigDirName, "config.yaml")
	}
	return ConfigFileName
}

// Load reads the first config file Locations finds. Without one it returns
// the defaults and an empty path.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnvironment()
		return cfg, "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// Parse decodes YAML config bytes and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvironment()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Driver: DriverConfig{
			URI:                     DefaultURI,
			MaxConnectionPoolSize:   50,
			ConnectionTimeout:       Duration(30 * time.Second),
			MaxTransactionRetryTime: Duration(30 * time.Second),
			ConnectRetries:          5,
		},
		Mapping: MappingConfig{
			AutoIndex: AutoIndexNone,
			LoadDepth: DefaultLoadDepth,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Version == 0 {
		c.Version = def.Version
	}
	if c.Driver.URI == "" {
		c.Driver.URI = def.Driver.URI
	}
	if c.Driver.MaxConnectionPoolSize == 0 {
		c.Driver.MaxConnectionPoolSize = def.Driver.MaxConnectionPoolSize
	}
	if c.Driver.ConnectionTimeout == 0 {
		c.Driver.ConnectionTimeout = def.Driver.ConnectionTimeout
	}
	if c.Driver.MaxTransactionRetryTime == 0 {
		c.Driver.MaxTransactionRetryTime = def.Driver.MaxTransactionRetryTime
	}
	if c.Driver.ConnectRetries == 0 {
		c.Driver.ConnectRetries = def.Driver.ConnectRetries
	}
	if c.Mapping.AutoIndex == "" {
		c.Mapping.AutoIndex = def.Mapping.AutoIndex
	}
	if c.Mapping.LoadDepth == 0 {
		c.Mapping.LoadDepth = def.Mapping.LoadDepth
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// applyEnvironment lets credentials come from the environment instead of the file
func (c *Config) applyEnvironment() {
	if uri := os.Getenv(EnvURI); uri != "" {
		c.Driver.URI = uri
	}
	if user := os.Getenv(EnvUsername); user != "" {
		c.Driver.Username = user
	}
	if pass := os.Getenv(EnvPassword); pass != "" {
		c.Driver.Password = pass
	}
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	if _, err := ParseAutoIndex(string(c.Mapping.AutoIndex)); err != nil {
		return err
	}
	if c.Mapping.LoadDepth < -1 {
		return fmt.Errorf("invalid load_depth %d: must be -1 (unbounded) or greater", c.Mapping.LoadDepth)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q: must be text or json", c.Logging.Format)
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Driver: %s (%s)\n", c.Driver.Scheme(), c.Driver.URI)
	summary += fmt.Sprintf("Auto index: %s, Load depth: %d\n", c.Mapping.AutoIndex, c.Mapping.LoadDepth)
	summary += fmt.Sprintf("Logging: %s/%s", c.Logging.Level, c.Logging.Format)
	return summary
}
