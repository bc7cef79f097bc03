package drivers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/memohai/accelerator/internal/hub"
)

// StoreType names a hub storage driver.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeBolt     StoreType = "bolt"
	StoreTypeRedis    StoreType = "redis"
	StoreTypePostgres StoreType = "postgres"
)

// ErrInvalidConfig is returned when a driver is missing its connection.
var ErrInvalidConfig = errors.New("invalid store configuration")

type storeConfig struct {
	boltPath    string
	redisClient *redis.Client
	redisPrefix string
	pgPool      *pgxpool.Pool
}

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

// WithBoltPath sets the bbolt file path.
func WithBoltPath(path string) StoreOption {
	return func(c *storeConfig) { c.boltPath = path }
}

// WithRedisClient sets the Redis client and key prefix.
func WithRedisClient(client *redis.Client, prefix string) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
		c.redisPrefix = prefix
	}
}

// WithPostgresPool sets the PostgreSQL pool.
func WithPostgresPool(pool *pgxpool.Pool) StoreOption {
	return func(c *storeConfig) { c.pgPool = pool }
}

// NewStore creates a hub store for the given driver type.
func NewStore(storeType StoreType, opts ...StoreOption) (hub.Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	switch StoreType(strings.ToLower(strings.TrimSpace(string(storeType)))) {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeBolt:
		if strings.TrimSpace(cfg.boltPath) == "" {
			return nil, fmt.Errorf("%w: bolt path is required", ErrInvalidConfig)
		}
		return OpenBoltStore(cfg.boltPath)
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
		}
		return NewRedisStore(cfg.redisClient, cfg.redisPrefix), nil
	case StoreTypePostgres:
		if cfg.pgPool == nil {
			return nil, fmt.Errorf("%w: postgres pool is required", ErrInvalidConfig)
		}
		return NewPostgresStore(cfg.pgPool), nil
	default:
		return nil, fmt.Errorf("unknown hub store type: %s", storeType)
	}
}
