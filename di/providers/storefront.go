package providers

import (
	"os"

	"github.com/samber/do/v2"

	"library-storefront/cart"
	"library-storefront/config"
	"library-storefront/gateway"
	"library-storefront/logger"
	"library-storefront/notify"
	"library-storefront/session"
	"library-storefront/storefront"
)

// ProvideNotifier provides the user notification sink.
func ProvideNotifier(i do.Injector) (*notify.Notifier, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return notify.New(os.Stderr,
		notify.WithWindow(cfg.Notify.SuppressWindow),
		notify.WithMuted(storefront.ErrNotLoggedIn),
	), nil
}

// ProvideManager provides the storefront façade.
func ProvideManager(i do.Injector) (*storefront.Manager, error) {
	gw := do.MustInvoke[*gateway.Gateway](i)
	cache := do.MustInvoke[*CacheHandle](i)
	c := do.MustInvoke[*cart.Cart](i)
	sess := do.MustInvoke[*session.Session](i)
	log := do.MustInvoke[*logger.Logger](i)

	return storefront.New(gw, cache.Cache, c, sess, log.WithComponent("storefront").Logger), nil
}
