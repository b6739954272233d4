package config

import (
	"os"
	"path/filepath"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents a simvue.yaml configuration file.
type Config struct {
	Version int          `yaml:"version" mapstructure:"version"`
	Server  ServerConfig `yaml:"server" mapstructure:"server"`
	Run     RunConfig    `yaml:"run" mapstructure:"run"`

	// Path is the file the config was loaded from; empty when only
	// defaults and environment were used.
	Path string `yaml:"-" mapstructure:"-"`
}

// ServerConfig holds connection settings for the Simvue server.
type ServerConfig struct {
	// URL of the server, e.g. https://simvue.example.com.
	URL string `yaml:"url" mapstructure:"url"`

	// Token is the API token sent as a bearer token.
	Token string `yaml:"token" mapstructure:"token"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MaxRequestRate caps requests per second. 0 means unlimited.
	MaxRequestRate float64 `yaml:"max_request_rate" mapstructure:"max_request_rate"`

	// Retries is how many times a failed request is retried.
	Retries int `yaml:"retries" mapstructure:"retries"`
}

// RunConfig controls local bookkeeping for runs created by the CLI.
type RunConfig struct {
	// CacheDir holds one JSON file per active run.
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Server: ServerConfig{
			Timeout: 30 * time.Second,
			Retries: 3,
		},
		Run: RunConfig{
			CacheDir: defaultCacheDir(),
		},
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "simvue", "cli_runs")
	}
	return filepath.Join(home, ".simvue", "cli_runs")
}
