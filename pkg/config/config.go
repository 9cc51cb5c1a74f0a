// Package config loads and validates the clipcache daemon configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CLIPCACHE_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the clipcache configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Cache configures the video resource cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Fetch configures the network transfer provider
	Fetch FetchConfig `mapstructure:"fetch" yaml:"fetch"`

	// Asset configures the prepared-asset pool
	Asset AssetConfig `mapstructure:"asset" yaml:"asset"`

	// Player configures the playback-engine pool
	Player PlayerConfig `mapstructure:"player" yaml:"player"`

	// Server configures the HTTP API
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects the log output format.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is the log destination: "stdout", "stderr" or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// CacheConfig configures the video resource cache.
type CacheConfig struct {
	// Root is the directory holding cached videos.
	// Default: <user-cache-dir>/clipcache/VideoCache
	Root string `mapstructure:"root" validate:"required" yaml:"root"`

	// MaxConcurrent caps simultaneous physical transfers.
	// Default: 2
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"omitempty,min=1" yaml:"max_concurrent"`

	// IndexSize bounds the memory fast-path index.
	// Default: 256
	IndexSize int `mapstructure:"index_size" validate:"omitempty,min=1" yaml:"index_size"`

	// Watch enables the filesystem watcher that invalidates index
	// entries when cache files are removed externally.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// FetchConfig configures the HTTP transfer client.
type FetchConfig struct {
	// RequestTimeout bounds a single download attempt.
	// Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"omitempty,gt=0" yaml:"request_timeout"`

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int `mapstructure:"max_retries" validate:"omitempty,min=0" yaml:"max_retries"`

	// InitialBackoff is the first retry delay; later delays grow
	// exponentially. Default: 500ms
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"omitempty,gt=0" yaml:"initial_backoff"`
}

// AssetConfig configures the prepared-asset pool.
type AssetConfig struct {
	// Capacity bounds the number of prepared assets kept alive.
	// Default: 50
	Capacity int `mapstructure:"capacity" validate:"omitempty,min=1" yaml:"capacity"`
}

// PlayerConfig configures the playback-engine pool.
type PlayerConfig struct {
	// MaxFree bounds the free list; recycled players beyond the cap are
	// dropped. Default: 6
	MaxFree int `mapstructure:"max_free" validate:"omitempty,min=1" yaml:"max_free"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Listen is the address the API binds to.
	// Default: 127.0.0.1:8935
	Listen string `mapstructure:"listen" validate:"required" yaml:"listen"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// Load loads configuration from file, environment, and defaults.
// configPath may be empty, in which case the default location
// ($XDG_CONFIG_HOME/clipcache/config.yaml) is searched and defaults are
// used when no file exists.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := DefaultConfig()
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration against the struct validation tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Save writes the configuration to path in YAML form, creating parent
// directories as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variable support and config file
// search. Environment variables use the CLIPCACHE_ prefix with
// underscores, e.g. CLIPCACHE_CACHE_MAX_CONCURRENT=4.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CLIPCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(DefaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists. A missing
// file is not an error; the caller falls back to defaults.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// DefaultConfigDir returns the directory searched for config.yaml.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "clipcache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "clipcache")
}
