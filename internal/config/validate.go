package config

import (
	"fmt"
	"net/url"

	"github.com/simvue-io/simvue-cli/internal/errors"
)

// Validate checks the config for errors a server connection would hit.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try running the command again.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but simvue only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade the simvue CLI.")
	}

	if err := validateServer(cfg.Server); err != nil {
		return err
	}

	if cfg.Run.CacheDir == "" {
		return errors.New(errors.ErrConfig,
			"run.cache_dir is empty",
			"Remove the key to use the default, or set a writable directory.")
	}

	return nil
}

func validateServer(s ServerConfig) error {
	if s.URL == "" {
		return errors.New(errors.ErrConfig,
			"No server URL configured",
			"Run 'simvue config server.url <url>' or set "+EnvURL+".")
	}

	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server URL '%s' is not a valid http(s) URL", s.URL),
			"Use the full address, like https://simvue.example.com")
	}

	if s.Token == "" {
		return errors.New(errors.ErrConfig,
			"No server token configured",
			"Run 'simvue config server.token <token>' or set "+EnvToken+".")
	}

	if s.Timeout < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("server.timeout can't be negative (got %s)", s.Timeout),
			"Use a duration like 30s.")
	}
	if s.MaxRequestRate < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("server.max_request_rate can't be negative (got %g)", s.MaxRequestRate),
			"Use 0 for no limit.")
	}
	if s.Retries < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("server.retries can't be negative (got %d)", s.Retries),
			"Use 0 to disable retries.")
	}

	return nil
}
