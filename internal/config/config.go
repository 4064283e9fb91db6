// Package config handles configuration loading for baton. It supports
// XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for baton.
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Cache    CacheConfig    `mapstructure:"cache"`
	History  HistoryConfig  `mapstructure:"history"`
	Simulate SimulateConfig `mapstructure:"simulate"`
}

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	// MaxConcurrent caps in-flight steps within a group (0 = unlimited).
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// DebugLog is an optional path for engine debug logging.
	DebugLog string `mapstructure:"debug_log"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// MaxEntries caps the LRU cache size.
	MaxEntries int `mapstructure:"max_entries"`
}

// HistoryConfig holds execution history settings.
type HistoryConfig struct {
	// Limit caps retained run records.
	Limit int `mapstructure:"limit"`
	// DBPath overrides the SQLite database location ("" = XDG default,
	// "off" disables persistence).
	DBPath string `mapstructure:"db_path"`
}

// SimulateConfig holds simulated-executor settings.
type SimulateConfig struct {
	// Seed drives the simulator's random source.
	Seed int64 `mapstructure:"seed"`
	// Scale multiplies estimated durations to produce simulated delays.
	Scale float64 `mapstructure:"scale"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (BATON_*)
//  2. Project config (.baton.yaml in current directory or a parent)
//  3. User config (~/.config/baton/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("BATON")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.max_concurrent", 0)
	v.SetDefault("engine.debug_log", "")

	v.SetDefault("cache.max_entries", 1024)

	v.SetDefault("history.limit", 1000)
	v.SetDefault("history.db_path", "")

	v.SetDefault("simulate.seed", time.Now().UnixNano())
	v.SetDefault("simulate.scale", 0.1)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Engine:  EngineConfig{},
		Cache:   CacheConfig{MaxEntries: 1024},
		History: HistoryConfig{Limit: 1000},
		Simulate: SimulateConfig{
			Seed:  time.Now().UnixNano(),
			Scale: 0.1,
		},
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// getUserConfigDir returns the XDG config directory for baton.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "baton")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "baton")
	}
	return filepath.Join(home, ".config", "baton")
}

// findProjectConfig searches for .baton.yaml in the current directory
// and its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".baton.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
