package modules

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/memohai/accelerator/internal/boot"
	"github.com/memohai/accelerator/internal/config"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/conversation"
	"github.com/memohai/accelerator/internal/handlers"
	"github.com/memohai/accelerator/internal/moderator"
	"github.com/memohai/accelerator/internal/overrides"
	"github.com/memohai/accelerator/internal/sessionmanager"
	"github.com/memohai/accelerator/internal/storage"
	"github.com/memohai/accelerator/internal/transport"
)

// SessionModule serves the session manager.
var SessionModule = fx.Module(
	"sessionmanager",
	fx.Provide(
		provideModerator,
		provideGuard,
		provideConversationStore,
		provideSummarizer,
		provideImageStore,
		provideSessionService,
		provideServerHandler(handlers.NewChatHandler),
	),
)

// provideModerator uses the remote moderator when a URL is configured and
// the keyword list otherwise.
func provideModerator(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) moderator.Moderator {
	url := strings.TrimSpace(rc.ModeratorURL)
	if url == "" {
		return moderator.Static{DenyKeywords: cfg.Moderator.DenyKeywords}
	}
	var opts []transport.Option
	if cfg.Moderator.APIKey != "" {
		opts = append(opts, transport.WithBearerToken(cfg.Moderator.APIKey))
	}
	opts = append(opts, transport.WithRateLimit(cfg.Moderator.RateLimit, cfg.Moderator.Burst))
	return moderator.NewHTTPModerator(url, transport.NewClient(log, cfg.Moderator.Timeout(), opts...))
}

func provideGuard(log *slog.Logger, cfg config.Config, m moderator.Moderator) *moderator.Guard {
	return moderator.NewGuard(log, m, cfg.Moderator.Timeout(), cfg.Moderator.FailOpen)
}

func provideConversationStore(lc fx.Lifecycle, cfg config.Config, client *redis.Client) (conversation.Store, error) {
	ttl := time.Duration(cfg.Conversation.TTLHours) * time.Hour
	store, err := conversation.NewStore(cfg.Conversation.Store, client, "", ttl)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

// provideSummarizer posts transcripts to the orchestrator's /summarize,
// next to its /bot route.
func provideSummarizer(rc *boot.RuntimeConfig, tc *transport.Client) conversation.Summarizer {
	return conversation.NewRemoteSummarizer(SummarizeURL(rc.OrchestratorURL), tc)
}

// SummarizeURL derives the summarize endpoint from the bot endpoint.
func SummarizeURL(botURL string) string {
	base := strings.TrimRight(strings.TrimSpace(botURL), "/")
	base = strings.TrimSuffix(base, "/bot")
	return base + "/summarize"
}

func provideImageStore(cfg config.Config) (storage.Provider, error) {
	root := strings.TrimSpace(cfg.Storage.Root)
	if root == "" {
		return nil, nil
	}
	return storage.NewFSProvider(root)
}

func provideSessionService(
	log *slog.Logger,
	configs overrides.Loader,
	store conversation.Store,
	guard *moderator.Guard,
	tc *transport.Client,
	summarizer conversation.Summarizer,
	images storage.Provider,
	rc *boot.RuntimeConfig,
) *sessionmanager.Service {
	return sessionmanager.NewService(log, configs, store, guard, tc, summarizer, sessionmanager.Options{
		OrchestratorURL: rc.OrchestratorURL,
		Defaults:        configdoc.SessionManagerConfig{CheckSafeImageContent: true},
		Images:          images,
	})
}
