package moderation

import (
	"context"
	"fmt"

	"github.com/codeclass-ai/schoolbot/internal/store"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// DefaultOffTopicLimit blocks a user on the third consecutive off-topic
// message.
const DefaultOffTopicLimit = 3

const (
	nudgeReply = "Хм, кажется, этот вопрос не совсем по моей теме. Я — AI-менеджер школы и лучше всего разбираюсь в курсах по программированию для детей и подростков. 😊\n\n" +
		"Могу рассказать о программе, стоимости или помочь записаться на бесплатный пробный урок. С чего начнем?"

	handoffReply = "Я снова не уверен, что правильно вас понимаю. Моя главная задача — помогать с нашими курсами программирования. 🤖\n\n" +
		"Возможно, ваш вопрос лучше задать живому менеджеру? Я могу сразу передать ему наш диалог."

	blockedReply = "Кажется, я не справляюсь с вашим вопросом. Чтобы вы не тратили время, я уже позвал на помощь нашего менеджера. " +
		"Он скоро подключится прямо к этому чату и обязательно вам поможет! 👌"

	blockReason = "Клиент задал несколько вопросов не по теме, AI-помощник не справился."
)

// Profiles is the store surface the guard mutates.
type Profiles interface {
	IncrementOffTopic(ctx context.Context, telegramID int64) (int, error)
	Block(ctx context.Context, telegramID int64) error
	Unblock(ctx context.Context, telegramID int64) error
}

// OperatorNotifier tells a human that the assistant gave up on a user.
type OperatorNotifier interface {
	NotifyBlocked(ctx context.Context, profile *store.Profile, reason string) error
}

// Verdict is the guard's decision for one off-topic message.
type Verdict struct {
	Count        int
	Reply        string
	OfferHandoff bool
	Blocked      bool
}

// Guard escalates repeated off-topic messages: a gentle nudge first, then a
// manager-handoff offer, then a block with exactly one operator notification.
type Guard struct {
	profiles Profiles
	notifier OperatorNotifier
	limit    int
	logger   *logging.Logger
}

func NewGuard(profiles Profiles, notifier OperatorNotifier, limit int, logger *logging.Logger) *Guard {
	if limit <= 0 {
		limit = DefaultOffTopicLimit
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{profiles: profiles, notifier: notifier, limit: limit, logger: logger}
}

// HandleOffTopic records one off-topic strike and returns the reply to send.
func (g *Guard) HandleOffTopic(ctx context.Context, profile *store.Profile) (*Verdict, error) {
	count, err := g.profiles.IncrementOffTopic(ctx, profile.TelegramID)
	if err != nil {
		return nil, fmt.Errorf("moderation: increment off-topic: %w", err)
	}

	switch {
	case count == 1:
		return &Verdict{Count: count, Reply: nudgeReply}, nil
	case count < g.limit:
		return &Verdict{Count: count, Reply: handoffReply, OfferHandoff: true}, nil
	}

	// Limit reached. The block is the primary effect; the operator ping is a
	// best-effort side channel. Notify only on the strike that crosses the
	// limit so the operator hears about each block exactly once.
	if err := g.profiles.Block(ctx, profile.TelegramID); err != nil {
		return nil, fmt.Errorf("moderation: block profile: %w", err)
	}
	g.logger.Warn("profile blocked after repeated off-topic messages",
		"telegram_id", profile.TelegramID, "count", count)

	if count == g.limit && g.notifier != nil {
		if err := g.notifier.NotifyBlocked(ctx, profile, blockReason); err != nil {
			g.logger.Error("operator notification failed",
				"telegram_id", profile.TelegramID, "error", err)
		}
	}
	return &Verdict{Count: count, Reply: blockedReply, Blocked: true}, nil
}

// Unblock lifts a block; the store resets the off-topic counter with it.
func (g *Guard) Unblock(ctx context.Context, telegramID int64) error {
	if err := g.profiles.Unblock(ctx, telegramID); err != nil {
		return fmt.Errorf("moderation: unblock: %w", err)
	}
	g.logger.Info("profile unblocked", "telegram_id", telegramID)
	return nil
}
