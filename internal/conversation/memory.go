package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps conversations in process memory. Each conversation
// has its own lock, so appends to different conversations never contend.
type MemoryStore struct {
	mu    sync.Mutex
	convs map[string]*memoryConversation
	now   func() time.Time
}

type memoryConversation struct {
	mu      sync.Mutex
	turns   []Turn
	closed  bool
	summary *Summary
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs: map[string]*memoryConversation{},
		now:   time.Now,
	}
}

func (s *MemoryStore) conversation(id string, create bool) *memoryConversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok && create {
		c = &memoryConversation{}
		s.convs[id] = c
	}
	return c
}

// AddTurn implements Store.
func (s *MemoryStore) AddTurn(_ context.Context, in NewTurn) (Turn, error) {
	in.ConversationID = strings.TrimSpace(in.ConversationID)
	if err := in.validate(); err != nil {
		return Turn{}, err
	}
	c := s.conversation(in.ConversationID, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Turn{}, closedError(in.ConversationID)
	}
	turn := Turn{
		ID:             uuid.NewString(),
		Seq:            int64(len(c.turns)) + 1,
		ConversationID: in.ConversationID,
		DialogID:       in.DialogID,
		UserID:         in.UserID,
		Role:           in.Role,
		Utterance:      in.Utterance,
		Payload:        in.Payload,
		Trace:          in.Trace,
		CreatedAt:      s.now().UTC(),
	}.Clone()
	c.turns = append(c.turns, turn)
	return turn.Clone(), nil
}

// Transcript implements Store. Unknown conversations have an empty transcript.
func (s *MemoryStore) Transcript(_ context.Context, conversationID string, filter Filter) ([]Turn, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	out := []Turn{}
	c := s.conversation(strings.TrimSpace(conversationID), false)
	if c == nil {
		return out, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.turns {
		if filter.match(t) {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// SummarizeAndClose implements Store. Appends wait while the summarizer runs
// and fail once the conversation is closed.
func (s *MemoryStore) SummarizeAndClose(ctx context.Context, conversationID string, summarizer Summarizer) (Summary, error) {
	conversationID = strings.TrimSpace(conversationID)
	c := s.conversation(conversationID, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Summary{}, closedError(conversationID)
	}
	turns := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		turns[i] = t.Clone()
	}
	text, err := summarizer.Summarize(ctx, conversationID, turns)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		ConversationID: conversationID,
		Summary:        text,
		TurnCount:      len(turns),
		CreatedAt:      s.now().UTC(),
	}
	c.closed = true
	c.summary = &summary
	return summary, nil
}

// Summary implements Store.
func (s *MemoryStore) Summary(_ context.Context, conversationID string) (Summary, error) {
	c := s.conversation(strings.TrimSpace(conversationID), false)
	if c == nil {
		return Summary{}, ErrNoSummary
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return Summary{}, ErrNoSummary
	}
	return *c.summary, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
