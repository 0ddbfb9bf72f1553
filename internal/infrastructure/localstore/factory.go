package localstore

import (
	"context"
	"fmt"

	"github.com/omkarjtg/ecomm/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Open builds the Store selected by cfg.Storage
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("localstore")

	switch cfg.Storage.Backend {
	case config.StorageMemory:
		logger.Warn("Using in-memory local storage; cart and session are lost on restart")
		return NewMemory(), nil
	case config.StorageFile:
		return OpenFile(cfg.Storage.Path, WithFileLogger(logger))
	case config.StorageRedis:
		r, err := OpenRedis(RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, WithKeyPrefix(cfg.Storage.KeyPrefix), WithRedisLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := r.Start(ctx); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("localstore: unknown backend %q", cfg.Storage.Backend)
}
