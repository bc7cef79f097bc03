package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"

	"github.com/memohai/accelerator/internal/boot"
	"github.com/memohai/accelerator/internal/config"
	"github.com/memohai/accelerator/internal/event"
	"github.com/memohai/accelerator/internal/logger"
	"github.com/memohai/accelerator/internal/transport"
)

// InfrastructureModule provides config, logging, the downstream HTTP
// client, Redis and the activation event plumbing.
var InfrastructureModule = fx.Module(
	"infrastructure",
	fx.Provide(
		ProvideConfig,
		boot.ProvideRuntimeConfig,
		provideLogger,
		provideTransportClient,
		provideRedisClient,
		event.NewHub,
		provideRedisBridge,
	),
	fx.Invoke(setupPropagation),
)

// ProvideConfig loads the TOML file named by CONFIG_PATH.
func ProvideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideTransportClient(log *slog.Logger, cfg config.Config) *transport.Client {
	return transport.NewClient(log, cfg.Services.Timeout())
}

// provideRedisClient does not dial; connections open on first use.
func provideRedisClient(lc fx.Lifecycle, rc *boot.RuntimeConfig, cfg config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     rc.RedisAddr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

// provideRedisBridge returns nil unless events travel over Redis.
func provideRedisBridge(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, client *redis.Client, local *event.Hub) *event.RedisBridge {
	if cfg.Events.Backend != "redis" {
		return nil
	}
	bridge := event.NewRedisBridge(client, cfg.Events.Channel, local, log)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
					log.Error("event bridge stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return bridge
}

func providePublisher(local *event.Hub, bridge *event.RedisBridge) event.Publisher {
	if bridge != nil {
		return bridge
	}
	return local
}

func setupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
