package modules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/memohai/accelerator/internal/auth"
	"github.com/memohai/accelerator/internal/boot"
	"github.com/memohai/accelerator/internal/config"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/db"
	"github.com/memohai/accelerator/internal/handlers"
	"github.com/memohai/accelerator/internal/hub"
	"github.com/memohai/accelerator/internal/hub/drivers"
)

// HubModule serves the configuration hub.
var HubModule = fx.Module(
	"hub",
	fx.Provide(
		ProvideRegistry,
		provideHubStore,
		providePublisher,
		hub.NewService,
		provideServerHandler(provideConfigHandler),
	),
)

// ProvideRegistry registers the built-in config types plus any extra
// agent prompt types named in config.
func ProvideRegistry(cfg config.Config) (*configdoc.Registry, error) {
	types := make([]configdoc.Type, 0, len(cfg.Hub.PromptTypes))
	for _, t := range cfg.Hub.PromptTypes {
		types = append(types, configdoc.Type(t))
	}
	return configdoc.DefaultRegistry(types...)
}

func provideHubStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig, client *redis.Client) (hub.Store, error) {
	kind := drivers.StoreType(strings.ToLower(strings.TrimSpace(rc.HubStore)))
	opts := []drivers.StoreOption{
		drivers.WithBoltPath(cfg.Hub.BoltPath),
		drivers.WithRedisClient(client, cfg.Hub.RedisPrefix),
	}
	if kind == drivers.StoreTypePostgres {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pool, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				pool.Close()
				return nil
			},
		})
		opts = append(opts, drivers.WithPostgresPool(pool))
	}
	store, err := drivers.NewStore(kind, opts...)
	if err != nil {
		return nil, err
	}
	log.Info("hub store ready", slog.String("driver", string(kind)))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func provideConfigHandler(log *slog.Logger, service *hub.Service, rc *boot.RuntimeConfig) *handlers.ConfigHandler {
	return handlers.NewConfigHandler(log, service, auth.JWTMiddleware(rc.JwtSecret, nil))
}
