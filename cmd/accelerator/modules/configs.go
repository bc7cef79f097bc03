package modules

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/accelerator/internal/boot"
	"github.com/memohai/accelerator/internal/cache"
	"github.com/memohai/accelerator/internal/config"
	"github.com/memohai/accelerator/internal/event"
	"github.com/memohai/accelerator/internal/hub"
	"github.com/memohai/accelerator/internal/overrides"
	"github.com/memohai/accelerator/internal/transport"
)

// RemoteConfigModule reads configs from a hub over HTTP.
var RemoteConfigModule = fx.Module(
	"configs_remote",
	fx.Provide(
		provideHubClient,
		provideConfigCache,
	),
)

// LocalConfigModule reads configs from the hub service in this process.
var LocalConfigModule = fx.Module(
	"configs_local",
	fx.Provide(
		func(s *hub.Service) cache.Loader { return s },
		provideConfigCache,
	),
)

func provideHubClient(rc *boot.RuntimeConfig, tc *transport.Client) cache.Loader {
	return hub.NewClient(rc.HubURL, tc)
}

// provideConfigCache puts the config cache in front of loader and drops
// entries as activation events arrive on the local event hub.
func provideConfigCache(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, loader cache.Loader, events *event.Hub) overrides.Loader {
	c := cache.New(log, loader, cache.Options{
		ActiveTTL:   cfg.Cache.ActiveTTL(),
		NegativeTTL: cfg.Cache.NegativeTTL(),
		PinnedTTL:   cfg.Cache.PinnedTTL(),
		WaitTimeout: cfg.Cache.WaitTimeout(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go c.Listen(ctx, events)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return c
}
