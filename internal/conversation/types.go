// Package conversation stores conversations as append-only sequences of
// dialog turns. A conversation is created by its first turn and ends when
// it is summarized and closed.
package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/memohai/accelerator/internal/apperr"
	"github.com/memohai/accelerator/internal/contracts"
)

// ErrNoSummary is returned for conversations that have not been closed.
var ErrNoSummary = errors.New("conversation has no summary")

// Turn is one stored utterance. Seq starts at 1 and follows append order.
type Turn struct {
	ID             string              `json:"id"`
	Seq            int64               `json:"seq"`
	ConversationID string              `json:"conversation_id"`
	DialogID       string              `json:"dialog_id"`
	UserID         string              `json:"user_id"`
	Role           contracts.Role      `json:"role"`
	Utterance      string              `json:"utterance"`
	Payload        []contracts.Payload `json:"payload,omitempty"`
	Trace          map[string]any      `json:"trace,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Clone returns a deep copy of the turn.
func (t Turn) Clone() Turn {
	if t.Payload != nil {
		t.Payload = append([]contracts.Payload(nil), t.Payload...)
	}
	t.Trace = cloneMap(t.Trace)
	return t
}

// Message renders the turn as an open-ended orchestrator message.
func (t Turn) Message() contracts.Message {
	msg := contracts.Message{
		"id":        t.ID,
		"seq":       t.Seq,
		"role":      string(t.Role),
		"content":   t.Utterance,
		"dialog_id": t.DialogID,
		"user_id":   t.UserID,
	}
	if len(t.Payload) > 0 {
		items := make([]any, 0, len(t.Payload))
		for _, p := range t.Payload {
			item := map[string]any{"type": string(p.Type), "value": p.Value}
			if p.Locale != "" {
				item["locale"] = p.Locale
			}
			items = append(items, item)
		}
		msg["payload"] = items
	}
	return msg
}

// NewTurn is the input of AddTurn.
type NewTurn struct {
	ConversationID string
	DialogID       string
	UserID         string
	Role           contracts.Role
	Utterance      string
	Payload        []contracts.Payload
	Trace          map[string]any
}

func (n NewTurn) validate() error {
	if strings.TrimSpace(n.ConversationID) == "" {
		return apperr.New(apperr.KindSchemaInvalid, "conversation_id is required")
	}
	if _, err := contracts.ParseRole(string(n.Role)); err != nil {
		return err
	}
	return nil
}

// Summary is stored when a conversation is closed.
type Summary struct {
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	TurnCount      int       `json:"turn_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Summarizer condenses a transcript.
type Summarizer interface {
	Summarize(ctx context.Context, conversationID string, turns []Turn) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, conversationID string, turns []Turn) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, conversationID string, turns []Turn) (string, error) {
	return f(ctx, conversationID, turns)
}

// Store is the conversation store contract. Appends to one conversation
// are serialized; transcripts and summaries are returned as copies.
type Store interface {
	AddTurn(ctx context.Context, turn NewTurn) (Turn, error)
	Transcript(ctx context.Context, conversationID string, filter Filter) ([]Turn, error)
	SummarizeAndClose(ctx context.Context, conversationID string, summarizer Summarizer) (Summary, error)
	Summary(ctx context.Context, conversationID string) (Summary, error)
	Close() error
}

func closedError(conversationID string) error {
	return apperr.New(apperr.KindConversationClosed, "conversation %s is closed", conversationID)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
