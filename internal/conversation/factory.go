package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// NewStore builds the named store. The redis driver requires client.
func NewStore(kind string, client *redis.Client, prefix string, ttl time.Duration) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", StoreMemory:
		return NewMemoryStore(), nil
	case StoreRedis:
		if client == nil {
			return nil, errors.New("redis conversation store requires a redis client")
		}
		return NewRedisStore(client, prefix, ttl), nil
	default:
		return nil, fmt.Errorf("unknown conversation store %q", kind)
	}
}
