package modules

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/accelerator/internal/boot"
	"github.com/memohai/accelerator/internal/handlers"
	"github.com/memohai/accelerator/internal/server"
	"github.com/memohai/accelerator/internal/version"
)

// ServerModule builds the HTTP server from every handler in the
// server_handlers group and runs it for the app's lifetime.
func ServerModule(role Role) fx.Option {
	return fx.Module(
		"server",
		fx.Provide(
			provideServerHandler(func(log *slog.Logger) *handlers.PingHandler {
				return handlers.NewPingHandler(log, string(role))
			}),
			provideServer,
		),
		fx.Invoke(startServer),
	)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting accelerator %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

// FxLogger routes fx lifecycle events through slog.
func FxLogger() fx.Option {
	return fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
		return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
	})
}
