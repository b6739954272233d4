package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/simvue-io/simvue-cli/internal/config"
	"github.com/simvue-io/simvue-cli/internal/errors"
)

// ConfigFileCheck reports which config file is in effect.
type ConfigFileCheck struct {
	ConfigPath string // Explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return CategoryConfig }

func (c *ConfigFileCheck) Run(_ context.Context) CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		msg, suggestion := errors.Explain(err)
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	if path == "" {
		if os.Getenv(config.EnvURL) != "" {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: "No config file, using " + config.EnvURL,
			}
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "No config file found",
			Suggestion: "Run 'simvue config server.url <url>' to create " + config.ConfigFileName,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Config file: " + path,
	}
}

func (c *ConfigFileCheck) Fix(_ context.Context) error { return nil }

// ConfigValidCheck loads the effective config and validates it.
type ConfigValidCheck struct {
	ConfigPath string
}

func (c *ConfigValidCheck) Name() string     { return "config_valid" }
func (c *ConfigValidCheck) Category() string { return CategoryConfig }

func (c *ConfigValidCheck) Run(_ context.Context) CheckResult {
	cfg, err := config.LoadOrDefault(c.ConfigPath)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		msg, suggestion := errors.Explain(err)
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    msg,
			Suggestion: suggestion,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Server %s, token set", cfg.Server.URL),
	}
}

func (c *ConfigValidCheck) Fix(_ context.Context) error { return nil }
