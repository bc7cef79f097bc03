// Package contracts holds the request and response envelopes exchanged by
// the session manager, orchestrator and skills.
package contracts

import (
	"encoding/json"
	"strings"

	"github.com/memohai/accelerator/internal/apperr"
)

// AnonymousUserID replaces blank user ids on inbound chat requests.
const AnonymousUserID = "anonymous"

// Answer is produced only on success.
type Answer struct {
	AnswerString   string         `json:"answer_string"`
	DataPoints     []string       `json:"data_points"`
	StepsExecution map[string]any `json:"steps_execution,omitempty"`
	SpeakAnswer    string         `json:"speak_answer,omitempty"`
	SpeakerLocale  string         `json:"speaker_locale,omitempty"`
}

// Error is the failure envelope. It is never combined with an Answer.
type Error struct {
	Kind       apperr.Kind `json:"kind,omitempty"`
	ErrorStr   string      `json:"error_str,omitempty"`
	Retry      bool        `json:"retry"`
	StatusCode int         `json:"status_code"`
}

// NewError converts any error into an envelope.
func NewError(err error) *Error {
	e := apperr.From(err)
	if e == nil {
		return nil
	}
	return &Error{
		Kind:       e.Kind,
		ErrorStr:   e.Error(),
		Retry:      e.Retry,
		StatusCode: e.Status,
	}
}

// Err turns an envelope back into a classified error, keeping status and retry.
func (e *Error) Err() *apperr.Error {
	if e == nil {
		return nil
	}
	kind := e.Kind
	if !kind.Valid() {
		kind = apperr.KindInternal
	}
	out := apperr.New(kind, "%s", strings.TrimPrefix(e.ErrorStr, string(kind)+": "))
	out.Retry = e.Retry
	if e.StatusCode != 0 {
		out.Status = e.StatusCode
	}
	return out
}

// Message is one serialized conversation entry carried to the orchestrator.
// It is open-ended: unknown keys are preserved.
type Message map[string]any

// ChatRequest is posted by clients to the session manager.
type ChatRequest struct {
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"`
	DialogID       string          `json:"dialog_id"`
	Message        UserPrompt      `json:"message"`
	UserProfile    *UserProfile    `json:"user_profile,omitempty"`
	Overrides      json.RawMessage `json:"overrides,omitempty"`
	ResponseMode   ResponseMode    `json:"response_mode,omitempty"`
}

// Normalize applies defaults: blank user ids become "anonymous" and an
// empty response mode becomes json.
func (r *ChatRequest) Normalize() {
	r.ConversationID = strings.TrimSpace(r.ConversationID)
	r.DialogID = strings.TrimSpace(r.DialogID)
	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		r.UserID = AnonymousUserID
	}
	if r.ResponseMode == "" {
		r.ResponseMode = ResponseModeJSON
	}
}

// Validate checks required fields and returns the parsed overrides.
func (r ChatRequest) Validate() (Overrides, error) {
	if r.ConversationID == "" {
		return Overrides{}, apperr.New(apperr.KindSchemaInvalid, "conversation_id is required")
	}
	if r.DialogID == "" {
		return Overrides{}, apperr.New(apperr.KindSchemaInvalid, "dialog_id is required")
	}
	if err := r.Message.Validate(); err != nil {
		return Overrides{}, err
	}
	if err := r.UserProfile.Validate(); err != nil {
		return Overrides{}, err
	}
	return ParseOverrides(r.Overrides)
}

// ParseChatRequest strictly decodes, normalizes and validates a chat request.
func ParseChatRequest(data []byte) (ChatRequest, Overrides, error) {
	var req ChatRequest
	if err := DecodeStrict(data, &req); err != nil {
		return ChatRequest{}, Overrides{}, err
	}
	req.Normalize()
	ov, err := req.Validate()
	if err != nil {
		return ChatRequest{}, Overrides{}, err
	}
	return req, ov, nil
}

// BotRequest is emitted by the session manager to the orchestrator.
type BotRequest struct {
	ConnectionID   string          `json:"connection_id"`
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	DialogID       string          `json:"dialog_id"`
	Messages       []Message       `json:"messages"`
	Locale         string          `json:"locale,omitempty"`
	UserProfile    *UserProfile    `json:"user_profile,omitempty"`
	Overrides      json.RawMessage `json:"overrides,omitempty"`
}

// ParseBotRequest strictly decodes a bot request and its overrides.
func ParseBotRequest(data []byte) (BotRequest, Overrides, error) {
	var req BotRequest
	if err := DecodeStrict(data, &req); err != nil {
		return BotRequest{}, Overrides{}, err
	}
	if strings.TrimSpace(req.ConnectionID) == "" {
		return BotRequest{}, Overrides{}, apperr.New(apperr.KindSchemaInvalid, "connection_id is required")
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		return BotRequest{}, Overrides{}, apperr.New(apperr.KindSchemaInvalid, "conversation_id is required")
	}
	if len(req.Messages) == 0 {
		return BotRequest{}, Overrides{}, apperr.New(apperr.KindSchemaInvalid, "messages are required")
	}
	if err := req.UserProfile.Validate(); err != nil {
		return BotRequest{}, Overrides{}, err
	}
	ov, err := ParseOverrides(req.Overrides)
	if err != nil {
		return BotRequest{}, Overrides{}, err
	}
	return req, ov, nil
}

// BotResponse is returned by the orchestrator.
type BotResponse struct {
	ConnectionID   string  `json:"connection_id"`
	DialogID       string  `json:"dialog_id,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
	UserID         string  `json:"user_id,omitempty"`
	Answer         *Answer `json:"answer,omitempty"`
	Error          *Error  `json:"error,omitempty"`
}

// Validate enforces that exactly one of answer and error is present.
func (r BotResponse) Validate() error {
	return exactlyOne(r.Answer, r.Error)
}

// ChatResponse is returned by the session manager to clients.
type ChatResponse struct {
	ConnectionID   string  `json:"connection_id"`
	DialogID       string  `json:"dialog_id,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
	UserID         string  `json:"user_id,omitempty"`
	Answer         *Answer `json:"answer,omitempty"`
	Error          *Error  `json:"error,omitempty"`
}

// Validate enforces that exactly one of answer and error is present.
func (r ChatResponse) Validate() error {
	return exactlyOne(r.Answer, r.Error)
}

func exactlyOne(answer *Answer, failure *Error) error {
	switch {
	case answer != nil && failure != nil:
		return apperr.New(apperr.KindInternal, "response carries both answer and error")
	case answer == nil && failure == nil:
		return apperr.New(apperr.KindInternal, "response carries neither answer nor error")
	}
	return nil
}
