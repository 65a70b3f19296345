package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/internal/store"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

const (
	historyCacheTTL = 24 * time.Hour
	historyLimit    = 20
)

// DialogLog is the durable side of the conversation history.
type DialogLog interface {
	Append(ctx context.Context, turn store.DialogTurn) error
	RecentTurns(ctx context.Context, profileID uuid.UUID, limit int) ([]store.DialogTurn, error)
}

// History keeps the dialog transcript in Postgres with a read-through Redis
// cache in front. The cache is invalidated on every append; a cache outage
// degrades to plain database reads.
type History struct {
	dialog DialogLog
	cache  *redis.Client
	logger *logging.Logger
}

func NewHistory(dialog DialogLog, cache *redis.Client, logger *logging.Logger) *History {
	if logger == nil {
		logger = logging.Default()
	}
	return &History{dialog: dialog, cache: cache, logger: logger}
}

func historyKey(profileID uuid.UUID) string {
	return "dialog:" + profileID.String()
}

// Append stores one turn and drops the cached transcript.
func (h *History) Append(ctx context.Context, profileID uuid.UUID, role, message, state, intent string) error {
	err := h.dialog.Append(ctx, store.DialogTurn{
		ProfileID: profileID,
		Role:      role,
		Message:   message,
		FSMState:  state,
		Intent:    intent,
	})
	if err != nil {
		return fmt.Errorf("conversation: append history: %w", err)
	}
	if h.cache != nil {
		if err := h.cache.Del(ctx, historyKey(profileID)).Err(); err != nil {
			h.logger.Warn("history cache invalidation failed", "error", err)
		}
	}
	return nil
}

// Recent returns the latest turns as chat messages, oldest first.
func (h *History) Recent(ctx context.Context, profileID uuid.UUID) ([]llm.Message, error) {
	if cached, ok := h.fromCache(ctx, profileID); ok {
		return cached, nil
	}

	turns, err := h.dialog.RecentTurns(ctx, profileID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Message})
	}
	h.toCache(ctx, profileID, msgs)
	return msgs, nil
}

func (h *History) fromCache(ctx context.Context, profileID uuid.UUID) ([]llm.Message, bool) {
	if h.cache == nil {
		return nil, false
	}
	raw, err := h.cache.Get(ctx, historyKey(profileID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			h.logger.Warn("history cache read failed", "error", err)
		}
		return nil, false
	}
	var msgs []llm.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		h.logger.Warn("history cache entry malformed, dropping", "error", err)
		h.cache.Del(ctx, historyKey(profileID))
		return nil, false
	}
	return msgs, true
}

func (h *History) toCache(ctx context.Context, profileID uuid.UUID, msgs []llm.Message) {
	if h.cache == nil {
		return
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, historyKey(profileID), raw, historyCacheTTL).Err(); err != nil {
		h.logger.Warn("history cache write failed", "error", err)
	}
}
