package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the project config file name.
	ConfigFileName = "simvue.yaml"
	// GlobalConfigDir is the directory for global config, relative to home.
	GlobalConfigDir = ".config/simvue"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"

	// EnvURL overrides server.url.
	EnvURL = "SIMVUE_URL"
	// EnvToken overrides server.token.
	EnvToken = "SIMVUE_TOKEN"
)

// Load reads config from the specified path, then applies environment overrides.
// An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found: "+path,
					"Run 'simvue config server.url <url>' to create one, or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}
	cfg.Path = path
	cfg.Run.CacheDir = expandHome(cfg.Run.CacheDir)

	return cfg, nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. simvue.yaml in current directory
// 3. simvue.yaml in parent directories (stops at git root or home)
// 4. ~/.config/simvue/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	home, _ := os.UserHomeDir()
	if p := findUpwards(cwd, home); p != "" {
		return p, nil
	}

	if home != "" {
		global := GlobalPath(home)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// LoadOrDefault finds and loads the config. A missing file is not an error;
// defaults and environment overrides apply.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// GlobalPath returns the global config path under home.
func GlobalPath(home string) string {
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
}

// LocalPath returns the project config path in dir.
func LocalPath(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	def := DefaultConfig()
	v.SetDefault("version", def.Version)
	v.SetDefault("server.url", "")
	v.SetDefault("server.token", "")
	v.SetDefault("server.timeout", def.Server.Timeout.String())
	v.SetDefault("server.max_request_rate", 0)
	v.SetDefault("server.retries", def.Server.Retries)
	v.SetDefault("run.cache_dir", def.Run.CacheDir)

	_ = v.BindEnv("server.url", EnvURL)
	_ = v.BindEnv("server.token", EnvToken)
	return v
}

// findUpwards walks from dir towards the root looking for ConfigFileName.
// It checks dir itself, then stops after the git root or before home.
func findUpwards(dir, home string) string {
	for {
		p := LocalPath(dir)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		if isGitRoot(dir) {
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		if home != "" && parent == home {
			return ""
		}
		dir = parent
	}
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
