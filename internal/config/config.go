// Package config loads application configuration from file and
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig holds remote CamDB endpoint configuration
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CacheConfig holds cache location configuration
type CacheConfig struct {
	Dir string `mapstructure:"dir"` // Optional absolute override of the cache directory
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File    string `mapstructure:"file"`
	Level   string `mapstructure:"level"`
	Verbose bool   `mapstructure:"verbose"` // Diagnostic detail to the console
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "https://camdb.matchmovemachine.com",
			TimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			Dir: "",
		},
		Logging: LoggingConfig{
			File:    defaultLogPath(),
			Level:   "INFO",
			Verbose: false,
		},
	}
}

// Timeout returns the configured API timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "camdb", "camdb.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "camdb", "camdb.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "camdb")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "camdb")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("CAMDB")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("api.base_url", cfg.API.BaseURL)
	viper.Set("api.timeout_seconds", cfg.API.TimeoutSeconds)
	viper.Set("cache.dir", cfg.Cache.Dir)
	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)
	viper.Set("logging.verbose", cfg.Logging.Verbose)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
