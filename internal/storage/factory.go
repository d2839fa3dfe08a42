package storage

import (
	"context"
	"fmt"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// FactoryConfig selects and configures the storage backend.
type FactoryConfig struct {
	Type          string // "memory" or "redis"
	DataDir       string // memory backend: YAML mirror directory, empty disables
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewStore builds the configured store implementation.
func NewStore(ctx context.Context, cfg FactoryConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		if cfg.DataDir != "" {
			return NewFileBackedStore(cfg.DataDir)
		}
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, domain.NewAppError(domain.ErrInvalidInput,
			fmt.Sprintf("unknown store type %q (must be memory or redis)", cfg.Type), 400, nil)
	}
}
