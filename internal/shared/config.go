package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Cache    CacheConfig    `toml:"cache"`
	Player   PlayerConfig   `toml:"player"`
}

// ServerConfig contains control backend connection settings.
type ServerConfig struct {
	BaseURL                string `toml:"base_url"`
	WSURL                  string `toml:"ws_url"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
}

// Timeout returns the per-request timeout for control plane calls.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DownloadTimeout returns the per-file timeout for media downloads.
func (s ServerConfig) DownloadTimeout() time.Duration {
	return time.Duration(s.DownloadTimeoutSeconds) * time.Second
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CacheConfig contains media cache settings.
type CacheConfig struct {
	Dir            string `toml:"dir"`
	MaxSizeBytes   int64  `toml:"max_size_bytes"`
	RateLimitBytes int64  `toml:"rate_limit_bytes"`
}

// PlayerConfig contains playback and pairing behavior.
type PlayerConfig struct {
	Version             string `toml:"version"`
	Resolution          string `toml:"resolution"`
	SyncIntervalSeconds int    `toml:"sync_interval_seconds"`
	PairingPollSeconds  int    `toml:"pairing_poll_seconds"`
	PairingMaxAttempts  int    `toml:"pairing_max_attempts"`
	WSReconnectSeconds  int    `toml:"ws_reconnect_seconds"`
	PairingCodeLength   int    `toml:"pairing_code_length"`
}

// SyncInterval returns the periodic sync cadence.
func (p PlayerConfig) SyncInterval() time.Duration {
	return time.Duration(p.SyncIntervalSeconds) * time.Second
}

// PairingPollInterval returns the activation polling cadence.
func (p PlayerConfig) PairingPollInterval() time.Duration {
	return time.Duration(p.PairingPollSeconds) * time.Second
}

// WSReconnectDelay returns the realtime channel reconnect backoff.
func (p PlayerConfig) WSReconnectDelay() time.Duration {
	return time.Duration(p.WSReconnectSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidConfig)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
