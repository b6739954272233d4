package cli

import (
	"github.com/simvue-io/simvue-cli/internal/config"
	"github.com/simvue-io/simvue-cli/internal/errors"
	"github.com/simvue-io/simvue-cli/internal/logger"
	"github.com/simvue-io/simvue-cli/internal/runcache"
	"github.com/simvue-io/simvue-cli/pkg/simvue"
)

// app bundles the collaborators most commands need.
type app struct {
	cfg    *config.Config
	client *simvue.Client
	cache  *runcache.Store
	log    logger.Logger
}

// loadConfig finds and loads the config honoring --config.
func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(cfgFile)
}

// newApp loads and validates config, then builds the service client.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	log := logger.NewEnvLogger("[simvue]")
	client, err := simvue.New(simvue.Config{
		URL:            cfg.Server.URL,
		Token:          cfg.Server.Token,
		Timeout:        cfg.Server.Timeout,
		MaxRequestRate: cfg.Server.MaxRequestRate,
		Retries:        cfg.Server.Retries,
		Logger:         logger.NewEnvLogger("[client]"),
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't use the configured server URL",
			"Check server.url in "+describeConfigSource(cfg))
	}

	log.Debug("using server %s (config: %s)", client.URL(), describeConfigSource(cfg))
	return &app{
		cfg:    cfg,
		client: client,
		cache:  runcache.New(cfg.Run.CacheDir),
		log:    log,
	}, nil
}

func describeConfigSource(cfg *config.Config) string {
	if cfg.Path == "" {
		return "environment (" + config.EnvURL + ", " + config.EnvToken + ")"
	}
	return cfg.Path
}
