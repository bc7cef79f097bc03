package drivers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/hub"
)

const (
	defaultRedisPrefix = "accelerator:config:"
	maxTxRetries       = 64
)

// RedisStore keeps documents in Redis. Inserts and activations run inside
// WATCH/MULTI/EXEC so concurrent writers cannot interleave.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. An empty prefix selects the
// default key namespace.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Insert implements hub.Store.
func (s *RedisStore) Insert(ctx context.Context, doc configdoc.Document) (configdoc.Document, error) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Active = false
	val, err := json.Marshal(doc)
	if err != nil {
		return configdoc.Document{}, err
	}
	key := s.docKey(doc.Type, doc.Version)
	err = s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return hub.ErrExists
		}
		seq, err := s.client.Incr(ctx, s.prefix+"seq").Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, val, 0)
			pipe.ZAdd(ctx, s.orderKey(doc.Type), redis.Z{Score: float64(seq), Member: doc.Version})
			return nil
		})
		return err
	}, key)
	if err != nil {
		return configdoc.Document{}, err
	}
	return doc.Clone(), nil
}

// Get implements hub.Store.
func (s *RedisStore) Get(ctx context.Context, t configdoc.Type, version string) (configdoc.Document, error) {
	val, err := s.client.Get(ctx, s.docKey(t, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return configdoc.Document{}, hub.ErrNotFound
	}
	if err != nil {
		return configdoc.Document{}, err
	}
	var doc configdoc.Document
	if err := json.Unmarshal(val, &doc); err != nil {
		return configdoc.Document{}, err
	}
	return doc, nil
}

// List implements hub.Store.
func (s *RedisStore) List(ctx context.Context, t configdoc.Type) ([]configdoc.Document, error) {
	versions, err := s.client.ZRevRange(ctx, s.orderKey(t), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return []configdoc.Document{}, nil
	}
	keys := make([]string, len(versions))
	for i, v := range versions {
		keys[i] = s.docKey(t, v)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]configdoc.Document, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var doc configdoc.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Active implements hub.Store.
func (s *RedisStore) Active(ctx context.Context, t configdoc.Type) (string, error) {
	version, err := s.client.Get(ctx, s.activeKey(t)).Result()
	if errors.Is(err, redis.Nil) {
		return "", hub.ErrNoActive
	}
	return version, err
}

// SetActive implements hub.Store.
func (s *RedisStore) SetActive(ctx context.Context, t configdoc.Type, version string) (string, error) {
	docKey := s.docKey(t, version)
	activeKey := s.activeKey(t)
	var previous string
	err := s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, docKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return hub.ErrNotFound
		}
		previous, err = tx.Get(ctx, activeKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, activeKey, version, 0)
			return nil
		})
		return err
	}, docKey, activeKey)
	return previous, err
}

// Close implements hub.Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// watch retries fn while another client modifies the watched keys.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *RedisStore) docKey(t configdoc.Type, version string) string {
	return s.prefix + "doc:" + string(t) + ":" + version
}

func (s *RedisStore) orderKey(t configdoc.Type) string {
	return s.prefix + "order:" + string(t)
}

func (s *RedisStore) activeKey(t configdoc.Type) string {
	return s.prefix + "active:" + string(t)
}
