// Package di wires the storefront client together.
package di

import (
	"github.com/samber/do/v2"
	"github.com/spf13/pflag"

	"library-storefront/di/providers"
)

// NewContainer creates the container. fs carries the parsed command-line flags
// and may be nil.
func NewContainer(fs *pflag.FlagSet) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, providers.Flags{FlagSet: fs})
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Local state
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSessionKey)
	do.Provide(injector, providers.ProvideSession)
	do.Provide(injector, providers.ProvideCart)

	// Remote API
	do.Provide(injector, providers.ProvideAPIClient)
	do.Provide(injector, providers.ProvideGateway)
	do.Provide(injector, providers.ProvideCache)

	// Presentation
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideManager)

	return injector
}

// Shutdown stops every started service and returns the report only when
// something failed to stop.
func Shutdown(injector *do.RootScope) error {
	if report := injector.Shutdown(); report != nil && !report.Succeed {
		return report
	}
	return nil
}
