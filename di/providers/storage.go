package providers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/samber/do/v2"

	"library-storefront/config"
	"library-storefront/logger"
	"library-storefront/storage"
)

const redisConnectTimeout = 5 * time.Second

// StoreHandle wraps the local store with shutdown capability.
type StoreHandle struct {
	storage.Store
	Backend string
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured backend. When it cannot be opened the
// client keeps running on an in-memory store and says so in the log.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	store, err := openStore(cfg)
	if err != nil {
		log.Warn("Local storage unavailable, state will not survive restart",
			"backend", cfg.Storage.Backend,
			"error", err,
		)
		return &StoreHandle{Store: storage.NewMemory(), Backend: "memory"}, nil
	}

	log.Debug("Local storage opened", "backend", cfg.Storage.Backend)
	return &StoreHandle{Store: store, Backend: cfg.Storage.Backend}, nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemory(), nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		return storage.NewRedis(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB, cfg.Storage.RedisPrefix)
	default:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return storage.NewSQLite(cfg.DBPath())
	}
}
