package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/contracts"
	"github.com/memohai/accelerator/internal/overrides"
)

// Service answers search requests with the effective SEARCH config.
type Service struct {
	configs overrides.Loader
	backend Backend
	logger  *slog.Logger
}

// NewService creates a search skill service.
func NewService(log *slog.Logger, configs overrides.Loader, backend Backend) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		configs: configs,
		backend: backend,
		logger:  log.With(slog.String("service", "search")),
	}
}

// Search runs a raw request. Failures are reported in the envelope.
func (s *Service) Search(ctx context.Context, data []byte) contracts.SearchResponse {
	req, ov, err := contracts.ParseSearchRequest(data)
	if err != nil {
		return contracts.SearchResponse{Error: contracts.NewError(err)}
	}
	resp, err := s.Query(ctx, req, ov)
	if err != nil {
		s.logger.Warn("search failed",
			slog.String("connection_id", req.ConnectionID),
			slog.Any("error", err))
		return contracts.SearchResponse{ConnectionID: req.ConnectionID, Error: contracts.NewError(err)}
	}
	return resp
}

// Query resolves the effective config from ov and queries the backend.
func (s *Service) Query(ctx context.Context, req contracts.SearchRequest, ov contracts.Overrides) (contracts.SearchResponse, error) {
	eff, err := overrides.Search(ctx, s.configs, ov)
	if err != nil {
		return contracts.SearchResponse{}, err
	}
	cfg := eff.Config
	results, err := s.backend.Query(ctx, Query{
		Index:          cfg.IndexName,
		Text:           req.Query,
		Top:            cfg.Top,
		SemanticRanker: cfg.SemanticRanker,
		VectorSearch:   cfg.VectorSearch,
		MinimumScore:   cfg.MinimumScore,
	})
	if err != nil {
		var classified *apperr.Error
		if !errors.As(err, &classified) && !errors.Is(err, context.DeadlineExceeded) {
			err = apperr.Wrap(apperr.KindUpstreamUnavailable, err, "search index %s", cfg.IndexName)
		}
		return contracts.SearchResponse{}, err
	}
	s.logger.Debug("search served",
		slog.String("index", cfg.IndexName),
		slog.String("config_version", eff.Version),
		slog.Int("top", cfg.Top),
		slog.Int("results", len(results)))
	return contracts.SearchResponse{
		ConnectionID:  req.ConnectionID,
		IndexName:     cfg.IndexName,
		ConfigVersion: eff.Version,
		Top:           cfg.Top,
		Results:       results,
	}, nil
}
