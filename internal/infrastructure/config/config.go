package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Chronofuse Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	TimeSync  TimeSyncConfig  `yaml:"timesync"`
	Streams   []StreamConfig  `yaml:"streams"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig contains instance-level identification.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// TimeSyncConfig contains time fusion and scheduler settings.
type TimeSyncConfig struct {
	// SyncInterval is the period between fetch+fuse cycles (seconds).
	SyncInterval int `yaml:"sync_interval"`

	// StaleAfter discards samples fetched longer ago than this (seconds).
	StaleAfter int `yaml:"stale_after"`

	// MinSourcesFullConfidence is the sample count at which the quality
	// score is no longer de-rated for having few sources.
	MinSourcesFullConfidence int `yaml:"min_sources_full_confidence"`

	// MaxConcurrentFetches bounds the adapter fan-out worker count.
	// Zero means one worker per source.
	MaxConcurrentFetches int `yaml:"max_concurrent_fetches"`

	Sources []TimeSourceConfig `yaml:"sources"`
}

// TimeSourceConfig describes one external timing provider.
type TimeSourceConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`

	// Timeout is the per-fetch timeout (seconds). Default 5.
	Timeout int `yaml:"timeout"`

	// BaseAccuracy is the declared accuracy (seconds) used when the
	// provider does not report its own.
	BaseAccuracy float64 `yaml:"base_accuracy"`

	// BaseGeometryQuality (0..1) is used when the provider does not
	// report signal geometry. Default 0.5.
	BaseGeometryQuality float64 `yaml:"base_geometry_quality"`

	// Field names in the provider's JSON response. TimestampField is
	// required; the others are optional metadata.
	TimestampField string `yaml:"timestamp_field"`
	AccuracyField  string `yaml:"accuracy_field"`
	GeometryField  string `yaml:"geometry_field"`
}

// StreamConfig describes a data stream registered at startup.
// Streams can also be registered at runtime via the API.
type StreamConfig struct {
	ID string `yaml:"id"`

	// Resolution is the bucket width in milliseconds.
	Resolution int64 `yaml:"resolution"`

	// Retention is how long points are kept (seconds, relative to the
	// newest point in the stream).
	Retention int `yaml:"retention"`

	// MaxPoints caps the number of buckets held for the stream.
	MaxPoints int `yaml:"max_points"`

	// Interpolation is one of: nearest, linear, cubic, step.
	Interpolation string `yaml:"interpolation"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// ArchiveConfig contains InfluxDB archive mirror settings.
//
// The archive is a one-way mirror of observed data points for long-term
// dashboards. The in-memory temporal index remains authoritative; the
// engine never reads the archive back.
type ArchiveConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CHRONOFUSE_SECTION_KEY
// For example: CHRONOFUSE_API_PORT, CHRONOFUSE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "chronofuse-001",
			Name: "Chronofuse",
		},
		TimeSync: TimeSyncConfig{
			SyncInterval:             30,
			StaleAfter:               120,
			MinSourcesFullConfidence: 3,
			MaxConcurrentFetches:     0,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "chronofuse-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CHRONOFUSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("CHRONOFUSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CHRONOFUSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CHRONOFUSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CHRONOFUSE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CHRONOFUSE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Archive
	if v := os.Getenv("CHRONOFUSE_ARCHIVE_TOKEN"); v != "" {
		cfg.Archive.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Service validation
	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	// TimeSync validation
	if c.TimeSync.SyncInterval < 1 {
		errs = append(errs, "timesync.sync_interval must be at least 1 second")
	}
	if c.TimeSync.MinSourcesFullConfidence < 1 {
		errs = append(errs, "timesync.min_sources_full_confidence must be at least 1")
	}
	seen := make(map[string]bool, len(c.TimeSync.Sources))
	for i, src := range c.TimeSync.Sources {
		if src.ID == "" {
			errs = append(errs, fmt.Sprintf("timesync.sources[%d].id is required", i))
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Sprintf("timesync.sources[%d].id %q is duplicated", i, src.ID))
		}
		seen[src.ID] = true
		if src.URL == "" {
			errs = append(errs, fmt.Sprintf("timesync.sources[%d].url is required", i))
		}
		if src.BaseAccuracy <= 0 {
			errs = append(errs, fmt.Sprintf("timesync.sources[%d].base_accuracy must be positive", i))
		}
	}

	// Stream validation
	for i, s := range c.Streams {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("streams[%d].id is required", i))
		}
		if s.Resolution <= 0 {
			errs = append(errs, fmt.Sprintf("streams[%d].resolution must be positive", i))
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Archive validation
	if c.Archive.Enabled {
		if c.Archive.URL == "" {
			errs = append(errs, "archive.url is required when archive is enabled")
		}
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive.bucket is required when archive is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetSyncInterval returns the scheduler sync interval as a Duration.
func (t TimeSyncConfig) GetSyncInterval() time.Duration {
	return time.Duration(t.SyncInterval) * time.Second
}

// GetStaleAfter returns the sample staleness threshold as a Duration.
func (t TimeSyncConfig) GetStaleAfter() time.Duration {
	return time.Duration(t.StaleAfter) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}

// GetTimeout returns the per-fetch timeout for a time source as a Duration.
func (s TimeSourceConfig) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}

// GetRetention returns the stream retention window as a Duration.
func (s StreamConfig) GetRetention() time.Duration {
	return time.Duration(s.Retention) * time.Second
}
