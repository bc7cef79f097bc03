package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/memohai/accelerator/internal/apperr"
)

const (
	defaultRedisPrefix = "accelerator:conversation:"
	maxTxRetries       = 64
)

// RedisStore keeps conversations in Redis lists. Appends and closes run
// inside WATCH/MULTI/EXEC on the conversation keys, which serializes them
// per conversation across processes.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A zero ttl keeps keys forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// AddTurn implements Store.
func (s *RedisStore) AddTurn(ctx context.Context, in NewTurn) (Turn, error) {
	in.ConversationID = strings.TrimSpace(in.ConversationID)
	if err := in.validate(); err != nil {
		return Turn{}, err
	}
	turnsKey, closedKey := s.turnsKey(in.ConversationID), s.closedKey(in.ConversationID)
	var turn Turn
	err := s.watch(ctx, func(tx *redis.Tx) error {
		closed, err := tx.Exists(ctx, closedKey).Result()
		if err != nil {
			return err
		}
		if closed > 0 {
			return closedError(in.ConversationID)
		}
		n, err := tx.LLen(ctx, turnsKey).Result()
		if err != nil {
			return err
		}
		turn = Turn{
			ID:             uuid.NewString(),
			Seq:            n + 1,
			ConversationID: in.ConversationID,
			DialogID:       in.DialogID,
			UserID:         in.UserID,
			Role:           in.Role,
			Utterance:      in.Utterance,
			Payload:        in.Payload,
			Trace:          in.Trace,
			CreatedAt:      time.Now().UTC(),
		}
		val, err := json.Marshal(turn)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, turnsKey, val)
			if s.ttl > 0 {
				pipe.Expire(ctx, turnsKey, s.ttl)
			}
			return nil
		})
		return err
	}, turnsKey, closedKey)
	if err != nil {
		return Turn{}, storeError(err, "append turn to %s", in.ConversationID)
	}
	return turn.Clone(), nil
}

// Transcript implements Store.
func (s *RedisStore) Transcript(ctx context.Context, conversationID string, filter Filter) ([]Turn, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	conversationID = strings.TrimSpace(conversationID)
	vals, err := s.client.LRange(ctx, s.turnsKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, storeError(err, "read transcript of %s", conversationID)
	}
	turns, err := decodeTurns(vals)
	if err != nil {
		return nil, storeError(err, "read transcript of %s", conversationID)
	}
	out := []Turn{}
	for _, t := range turns {
		if filter.match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// SummarizeAndClose implements Store. If a turn is appended while the
// summarizer runs, the transaction is retried with the longer transcript.
func (s *RedisStore) SummarizeAndClose(ctx context.Context, conversationID string, summarizer Summarizer) (Summary, error) {
	conversationID = strings.TrimSpace(conversationID)
	turnsKey, closedKey, summaryKey := s.turnsKey(conversationID), s.closedKey(conversationID), s.summaryKey(conversationID)
	var summary Summary
	err := s.watch(ctx, func(tx *redis.Tx) error {
		closed, err := tx.Exists(ctx, closedKey).Result()
		if err != nil {
			return err
		}
		if closed > 0 {
			return closedError(conversationID)
		}
		vals, err := tx.LRange(ctx, turnsKey, 0, -1).Result()
		if err != nil {
			return err
		}
		turns, err := decodeTurns(vals)
		if err != nil {
			return err
		}
		text, err := summarizer.Summarize(ctx, conversationID, turns)
		if err != nil {
			return err
		}
		summary = Summary{
			ConversationID: conversationID,
			Summary:        text,
			TurnCount:      len(turns),
			CreatedAt:      time.Now().UTC(),
		}
		val, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, summaryKey, val, s.ttl)
			pipe.Set(ctx, closedKey, "1", s.ttl)
			return nil
		})
		return err
	}, turnsKey, closedKey)
	if err != nil {
		return Summary{}, storeError(err, "close %s", conversationID)
	}
	return summary, nil
}

// Summary implements Store.
func (s *RedisStore) Summary(ctx context.Context, conversationID string) (Summary, error) {
	conversationID = strings.TrimSpace(conversationID)
	val, err := s.client.Get(ctx, s.summaryKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, ErrNoSummary
	}
	if err != nil {
		return Summary{}, storeError(err, "read summary of %s", conversationID)
	}
	var summary Summary
	if err := json.Unmarshal(val, &summary); err != nil {
		return Summary{}, storeError(err, "read summary of %s", conversationID)
	}
	return summary, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *RedisStore) turnsKey(id string) string   { return s.prefix + id + ":turns" }
func (s *RedisStore) closedKey(id string) string  { return s.prefix + id + ":closed" }
func (s *RedisStore) summaryKey(id string) string { return s.prefix + id + ":summary" }

// storeError classifies Redis failures. Classified errors pass through;
// corrupt records are INTERNAL and everything else is UPSTREAM_UNAVAILABLE.
func storeError(err error, format string, args ...any) error {
	var classified *apperr.Error
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &classified):
		return classified
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTimeout, err, "conversation store: "+format, args...)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return apperr.Wrap(apperr.KindInternal, err, "conversation store: "+format, args...)
	default:
		return apperr.Wrap(apperr.KindUpstreamUnavailable, err, "conversation store: "+format, args...)
	}
}

func decodeTurns(vals []string) ([]Turn, error) {
	turns := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}
