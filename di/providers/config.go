// Package providers contains dependency injection providers for the storefront client.
package providers

import (
	"github.com/samber/do/v2"
	"github.com/spf13/pflag"

	"library-storefront/config"
	"library-storefront/logger"
)

// Flags carries the parsed command-line flags into the container.
type Flags struct {
	*pflag.FlagSet
}

// ProvideConfig provides the client configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags := do.MustInvoke[Flags](i)

	return config.Load(flags.FlagSet)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Format:      cfg.Logger.Format,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Debug("Starting library storefront",
		"environment", cfg.App.Environment,
		"api", cfg.API.BaseURL,
		"storage", cfg.Storage.Backend,
		"data_dir", cfg.Storage.DataDir,
	)

	return log, nil
}
