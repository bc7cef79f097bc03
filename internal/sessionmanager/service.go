// Package sessionmanager runs the client facing chat pipeline: it validates
// requests, applies moderation, records the conversation and relays each
// turn to the orchestrator.
package sessionmanager

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/contracts"
	"github.com/memohai/accelerator/internal/conversation"
	"github.com/memohai/accelerator/internal/moderator"
	"github.com/memohai/accelerator/internal/overrides"
	"github.com/memohai/accelerator/internal/storage"
	"github.com/memohai/accelerator/internal/transport"
)

// Message attributes added to the newest turn of an outbound BotRequest.
const (
	AttrResponseMode = "response_mode"
)

// Options carries deployment level settings.
type Options struct {
	// OrchestratorURL is used when the effective config names no orchestrator_uri.
	OrchestratorURL string
	// Defaults stands in for the SESSION_MANAGER document until one is activated.
	Defaults configdoc.SessionManagerConfig
	// Images archives image payloads when the effective config names an
	// image_container. Nil disables archiving.
	Images storage.Provider
}

// Service implements the chat pipeline.
type Service struct {
	configs    overrides.Loader
	store      conversation.Store
	guard      *moderator.Guard
	client     *transport.Client
	summarizer conversation.Summarizer
	opts       Options
	newID      func() string
	logger     *slog.Logger
}

// NewService creates a session manager service.
func NewService(log *slog.Logger, configs overrides.Loader, store conversation.Store, guard *moderator.Guard, client *transport.Client, summarizer conversation.Summarizer, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		configs:    configs,
		store:      store,
		guard:      guard,
		client:     client,
		summarizer: summarizer,
		opts:       opts,
		newID:      uuid.NewString,
		logger:     log.With(slog.String("service", "sessionmanager")),
	}
}

// Chat runs one request through the pipeline. Every outcome, including a
// malformed request, is reported inside the returned envelope.
func (s *Service) Chat(ctx context.Context, data []byte) contracts.ChatResponse {
	connectionID := s.newID()
	req, ov, err := contracts.ParseChatRequest(data)
	if err != nil {
		return contracts.ChatResponse{ConnectionID: connectionID, Error: contracts.NewError(err)}
	}
	resp := contracts.ChatResponse{
		ConnectionID:   connectionID,
		DialogID:       req.DialogID,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
	}
	logger := s.logger.With(
		slog.String("connection_id", connectionID),
		slog.String("conversation_id", req.ConversationID),
		slog.String("dialog_id", req.DialogID),
	)

	bot, err := s.dispatch(ctx, logger, connectionID, req, ov)
	if err != nil {
		logger.Warn("chat failed", slog.Any("error", err))
		resp.Error = contracts.NewError(err)
		return resp
	}
	if bot.ConnectionID != "" {
		resp.ConnectionID = bot.ConnectionID
	}
	if bot.DialogID != "" {
		resp.DialogID = bot.DialogID
	}
	if bot.ConversationID != "" {
		resp.ConversationID = bot.ConversationID
	}
	if bot.UserID != "" {
		resp.UserID = bot.UserID
	}
	resp.Answer = bot.Answer
	resp.Error = bot.Error
	return resp
}

func (s *Service) dispatch(ctx context.Context, logger *slog.Logger, connectionID string, req contracts.ChatRequest, ov contracts.Overrides) (contracts.BotResponse, error) {
	eff, err := overrides.SessionManagerWithDefault(ctx, s.configs, ov, &s.opts.Defaults)
	if err != nil {
		return contracts.BotResponse{}, err
	}

	if err := s.moderate(ctx, eff.Config, req.Message); err != nil {
		return contracts.BotResponse{}, err
	}

	trace := map[string]any{
		"connection_id":  connectionID,
		"config_version": eff.Version,
	}
	if keys := s.archiveImages(ctx, logger, eff.Config, connectionID, req); len(keys) > 0 {
		trace["images"] = keys
	}
	turn, err := s.store.AddTurn(ctx, conversation.NewTurn{
		ConversationID: req.ConversationID,
		DialogID:       req.DialogID,
		UserID:         req.UserID,
		Role:           contracts.RoleUser,
		Utterance:      req.Message.Text(),
		Payload:        req.Message.Payload,
		Trace:          trace,
	})
	if err != nil {
		return contracts.BotResponse{}, err
	}

	history, err := s.store.Transcript(ctx, req.ConversationID, conversation.Filter{})
	if err != nil {
		return contracts.BotResponse{}, err
	}
	history = conversation.UpTo(history, turn.Seq)
	messages := make([]contracts.Message, 0, len(history))
	for _, t := range history {
		msg := t.Message()
		if t.ID == turn.ID {
			msg[AttrResponseMode] = string(req.ResponseMode)
		}
		messages = append(messages, msg)
	}

	botReq := contracts.BotRequest{
		ConnectionID:   connectionID,
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		DialogID:       req.DialogID,
		Messages:       messages,
		Locale:         req.Message.Locale(),
		UserProfile:    req.UserProfile,
		Overrides:      req.Overrides,
	}
	target := s.orchestratorURL(eff.Config)
	if target == "" {
		return contracts.BotResponse{}, apperr.New(apperr.KindUpstreamUnavailable, "no orchestrator uri configured")
	}

	var bot contracts.BotResponse
	if _, err := s.client.PostJSON(ctx, target, botReq, &bot); err != nil {
		return contracts.BotResponse{}, err
	}
	if err := bot.Validate(); err != nil {
		return contracts.BotResponse{}, apperr.Wrap(apperr.KindInternal, err, "orchestrator reply")
	}

	if bot.Answer != nil {
		_, err := s.store.AddTurn(ctx, conversation.NewTurn{
			ConversationID: req.ConversationID,
			DialogID:       req.DialogID,
			UserID:         req.UserID,
			Role:           contracts.RoleAssistant,
			Utterance:      bot.Answer.AnswerString,
			Trace: map[string]any{
				"connection_id":   connectionID,
				"steps_execution": bot.Answer.StepsExecution,
			},
		})
		if err != nil {
			logger.Warn("record assistant turn failed", slog.Any("error", err))
		}
	}
	return bot, nil
}

// moderate checks the payload kinds the effective config asks for. Nothing
// is sent to the moderator when neither check applies.
func (s *Service) moderate(ctx context.Context, cfg configdoc.SessionManagerConfig, prompt contracts.UserPrompt) error {
	var contents []moderator.Content
	if cfg.CheckSafeImageContent {
		for _, item := range prompt.Images() {
			data, err := base64.StdEncoding.DecodeString(item.Value)
			if err != nil {
				return apperr.Wrap(apperr.KindSchemaInvalid, err, "image payload is not base64")
			}
			contents = append(contents, moderator.Image(data))
		}
	}
	if cfg.CheckSafeTextContent {
		if text := prompt.Text(); text != "" {
			contents = append(contents, moderator.Text(text))
		}
	}
	if len(contents) == 0 {
		return nil
	}
	guard := s.guard
	if guard == nil {
		guard = moderator.NewGuard(s.logger, nil, 0, false)
	}
	if cfg.ModeratorTimeoutMS > 0 {
		guard = guard.WithTimeout(time.Duration(cfg.ModeratorTimeoutMS) * time.Millisecond)
	}
	return guard.Check(ctx, contents...)
}

// archiveImages stores the image payloads under
// image_container/<conversation>/<connection>-<n>. Archiving is best effort;
// failures are logged and the turn proceeds without them.
func (s *Service) archiveImages(ctx context.Context, logger *slog.Logger, cfg configdoc.SessionManagerConfig, connectionID string, req contracts.ChatRequest) []string {
	container := strings.Trim(strings.TrimSpace(cfg.ImageContainer), "/")
	if s.opts.Images == nil || container == "" {
		return nil
	}
	var keys []string
	for i, item := range req.Message.Images() {
		data, err := base64.StdEncoding.DecodeString(item.Value)
		if err != nil {
			continue
		}
		key := path.Join(container, url.PathEscape(req.ConversationID), fmt.Sprintf("%s-%d", connectionID, i))
		if err := s.opts.Images.Put(ctx, key, bytes.NewReader(data)); err != nil {
			logger.Warn("archive image failed", slog.String("key", key), slog.Any("error", err))
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func (s *Service) orchestratorURL(cfg configdoc.SessionManagerConfig) string {
	if uri := strings.TrimSpace(cfg.OrchestratorURI); uri != "" {
		return uri
	}
	return strings.TrimSpace(s.opts.OrchestratorURL)
}

// EndConversation summarizes the conversation and closes it to new turns.
func (s *Service) EndConversation(ctx context.Context, conversationID string) (conversation.Summary, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return conversation.Summary{}, apperr.New(apperr.KindSchemaInvalid, "conversation_id is required")
	}
	if s.summarizer == nil {
		return conversation.Summary{}, apperr.New(apperr.KindUpstreamUnavailable, "no summarizer configured")
	}
	summary, err := s.store.SummarizeAndClose(ctx, conversationID, s.summarizer)
	if err != nil {
		return conversation.Summary{}, err
	}
	s.logger.Info("conversation closed",
		slog.String("conversation_id", conversationID),
		slog.Int("turns", summary.TurnCount))
	return summary, nil
}

// Transcript returns the stored turns of a conversation, optionally filtered.
func (s *Service) Transcript(ctx context.Context, conversationID string, filter conversation.Filter) ([]conversation.Turn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, apperr.New(apperr.KindSchemaInvalid, "conversation_id is required")
	}
	return s.store.Transcript(ctx, conversationID, filter)
}

// Summary returns the stored summary of a closed conversation.
func (s *Service) Summary(ctx context.Context, conversationID string) (conversation.Summary, error) {
	return s.store.Summary(ctx, strings.TrimSpace(conversationID))
}
