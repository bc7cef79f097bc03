// Package orchestrator answers bot requests: it resolves the effective
// ORCHESTRATOR config, trims the history and runs the agent plan.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/memohai/accelerator/internal/contracts"
	"github.com/memohai/accelerator/internal/overrides"
)

// Service implements the /bot and /summarize operations.
type Service struct {
	configs overrides.Loader
	plan    Plan
	logger  *slog.Logger
}

// NewService creates an orchestrator service.
func NewService(log *slog.Logger, configs overrides.Loader, plan Plan) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		configs: configs,
		plan:    plan,
		logger:  log.With(slog.String("service", "orchestrator")),
	}
}

// Bot answers one raw bot request. Every outcome is reported in the
// returned envelope, which carries exactly one of answer and error.
func (s *Service) Bot(ctx context.Context, data []byte) contracts.BotResponse {
	req, ov, err := contracts.ParseBotRequest(data)
	if err != nil {
		return contracts.BotResponse{ConnectionID: req.ConnectionID, Error: contracts.NewError(err)}
	}
	resp := contracts.BotResponse{
		ConnectionID:   req.ConnectionID,
		DialogID:       req.DialogID,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
	}
	answer, err := s.answer(ctx, req, ov)
	if err != nil {
		s.logger.Warn("bot turn failed",
			slog.String("connection_id", req.ConnectionID),
			slog.String("conversation_id", req.ConversationID),
			slog.Any("error", err))
		resp.Error = contracts.NewError(err)
		return resp
	}
	resp.Answer = answer
	return resp
}

func (s *Service) answer(ctx context.Context, req contracts.BotRequest, ov contracts.Overrides) (*contracts.Answer, error) {
	eff, err := overrides.Orchestrator(ctx, s.configs, ov)
	if err != nil {
		return nil, err
	}
	return s.plan.Execute(ctx, Request{
		Bot:           req,
		Config:        eff.Config,
		ConfigVersion: eff.Version,
		History:       TrimHistory(req.Messages, eff.Config.MaxHistoryTurns),
	})
}

// TrimHistory keeps the newest max messages. Zero keeps everything.
func TrimHistory(messages []contracts.Message, max int) []contracts.Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	return messages[len(messages)-max:]
}

// Summarize condenses a raw summarize request.
func (s *Service) Summarize(ctx context.Context, data []byte) contracts.SummarizeResponse {
	var req contracts.SummarizeRequest
	if err := contracts.DecodeStrict(data, &req); err != nil {
		return contracts.SummarizeResponse{Error: contracts.NewError(err)}
	}
	if err := req.Validate(); err != nil {
		return contracts.SummarizeResponse{Error: contracts.NewError(err)}
	}
	if err := ctx.Err(); err != nil {
		return contracts.SummarizeResponse{ConversationID: req.ConversationID, Error: contracts.NewError(err)}
	}
	return contracts.SummarizeResponse{
		ConversationID: req.ConversationID,
		Summary:        Summarize(req.Messages),
	}
}
