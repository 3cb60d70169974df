package providers

import (
	"context"

	"github.com/samber/do/v2"

	"library-storefront/cart"
	"library-storefront/config"
	"library-storefront/logger"
	"library-storefront/session"
)

// SessionKey is the key that seals the stored auth token.
type SessionKey *[32]byte

// ProvideSessionKey loads or generates the sealing key in the data directory.
func ProvideSessionKey(i do.Injector) (SessionKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return session.LoadOrCreateKey(cfg.Storage.DataDir)
}

// ProvideSession provides the auth session, restored from storage.
func ProvideSession(i do.Injector) (*session.Session, error) {
	store := do.MustInvoke[*StoreHandle](i)
	key := do.MustInvoke[SessionKey](i)
	log := do.MustInvoke[*logger.Logger](i)

	s := session.New(store, key, log.WithComponent("session").Logger)
	s.Load(context.Background())
	return s, nil
}

// ProvideCart provides the persistent cart.
func ProvideCart(i do.Injector) (*cart.Cart, error) {
	store := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	c := cart.New(store, log.WithComponent("cart").Logger)
	c.Load(context.Background())
	return c, nil
}
