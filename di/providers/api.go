package providers

import (
	"github.com/samber/do/v2"

	"library-storefront/apiclient"
	"library-storefront/config"
	"library-storefront/gateway"
	"library-storefront/logger"
	"library-storefront/query"
	"library-storefront/session"
	"library-storefront/validation"
)

// ProvideAPIClient provides the HTTP client, authenticated from the session.
func ProvideAPIClient(i do.Injector) (*apiclient.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sess := do.MustInvoke[*session.Session](i)

	return apiclient.New(apiclient.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		RPS:     cfg.API.RPS,
		Burst:   cfg.API.Burst,
		Tokens:  sess,
		Logger:  log.WithComponent("api").Logger,
	})
}

// ProvideGateway provides the resource gateways.
func ProvideGateway(i do.Injector) (*gateway.Gateway, error) {
	cfg := do.MustInvoke[*config.Config](i)
	client := do.MustInvoke[*apiclient.Client](i)

	unsupported := make([]gateway.Capability, 0, len(cfg.API.Unsupported))
	for _, name := range cfg.API.Unsupported {
		unsupported = append(unsupported, gateway.Capability(name))
	}
	return gateway.New(client, validation.New(), unsupported...), nil
}

// CacheHandle wraps the query cache and its collector.
type CacheHandle struct {
	*query.Cache
	collector *query.Collector
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.collector.Shutdown()
}

// ProvideCache provides the query cache with garbage collection running.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	cache := query.New(query.WithLogger(log.WithComponent("query").Logger))
	collector, err := query.NewCollector(cache, cfg.Cache.SweepSchedule, nil)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	collector.Start()

	return &CacheHandle{Cache: cache, collector: collector}, nil
}
