package cli

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"burn.note/config"
	"burn.note/internal/access"
	"burn.note/internal/store"
)

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case config.StoreRedis:
		st, err := store.NewRedisStore(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		}, cfg.Store.Redis.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return st, nil
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	default:
		st, err := store.OpenSQLite(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		return st, nil
	}
}

func newEngine(st store.Store, cfg *config.Config, log *zap.Logger) *access.Engine {
	return access.New(st, access.Options{
		Delays:       cfg.Messages.Delays,
		DefaultDelay: cfg.Messages.DefaultDelay,
		Retention:    cfg.Messages.Retention,
		Logger:       log,
	})
}
