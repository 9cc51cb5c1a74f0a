package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCacheDefaults(&cfg.Cache)
	applyFetchDefaults(&cfg.Fetch)
	applyAssetDefaults(&cfg.Asset)
	applyPlayerDefaults(&cfg.Player)
	applyServerDefaults(&cfg.Server)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Root == "" {
		cfg.Root = DefaultCacheRoot()
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.IndexSize == 0 {
		cfg.IndexSize = 256
	}
}

func applyFetchDefaults(cfg *FetchConfig) {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
}

func applyAssetDefaults(cfg *AssetConfig) {
	if cfg.Capacity == 0 {
		cfg.Capacity = 50
	}
}

func applyPlayerDefaults(cfg *PlayerConfig) {
	if cfg.MaxFree == 0 {
		cfg.MaxFree = 6
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8935"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

// DefaultConfig returns the configuration used when no config file
// exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// DefaultCacheRoot returns the default directory for cached videos.
func DefaultCacheRoot() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "clipcache", "VideoCache")
}
