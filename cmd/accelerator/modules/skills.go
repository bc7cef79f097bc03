package modules

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.uber.org/fx"

	"github.com/memohai/accelerator/internal/boot"
	"github.com/memohai/accelerator/internal/config"
	"github.com/memohai/accelerator/internal/handlers"
	"github.com/memohai/accelerator/internal/orchestrator"
	"github.com/memohai/accelerator/internal/skills/search"
	"github.com/memohai/accelerator/internal/transport"
)

// SearchModule serves the search skill.
var SearchModule = fx.Module(
	"search",
	fx.Provide(
		provideSearchBackend,
		search.NewService,
		provideServerHandler(handlers.NewSearchHandler),
	),
)

// OrchestratorModule serves the orchestrator. It needs an
// orchestrator.Searcher from RemoteSearcher or LocalSearcher.
var OrchestratorModule = fx.Module(
	"orchestrator",
	fx.Provide(
		providePlan,
		orchestrator.NewService,
		provideServerHandler(handlers.NewBotHandler),
	),
)

// RemoteSearcher reaches the search skill over HTTP.
var RemoteSearcher = fx.Provide(func(rc *boot.RuntimeConfig, tc *transport.Client) orchestrator.Searcher {
	return search.NewClient(rc.SearchURL, tc)
})

// LocalSearcher calls the search service in this process.
var LocalSearcher = fx.Provide(func(s *search.Service) orchestrator.Searcher {
	return search.NewLocalClient(s)
})

func provideSearchBackend(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (search.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Search.Backend)) {
	case "qdrant":
		timeout := time.Duration(cfg.Qdrant.TimeoutSeconds) * time.Second
		backend, err := search.NewQdrantBackend(log, cfg.Qdrant.BaseURL, cfg.Qdrant.APIKey, timeout)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return backend.Close()
			},
		})
		return backend, nil
	default:
		backend := search.NewMemoryBackend()
		if path := strings.TrimSpace(cfg.Search.CorpusPath); path != "" {
			docs, err := search.LoadCorpus(path)
			if err != nil {
				return nil, err
			}
			backend.Add(docs...)
			log.Info("search corpus loaded", slog.String("path", path), slog.Int("documents", len(docs)))
		}
		return backend, nil
	}
}

func providePlan(searcher orchestrator.Searcher) orchestrator.Plan {
	return orchestrator.NewSequentialPlan(orchestrator.EchoAgent{}, orchestrator.NewSearchAgent(searcher))
}
