package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/codeclass-ai/schoolbot/internal/conversation"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// Moderation is the small slice of the moderation guard admins can drive
// over chat commands.
type Moderation interface {
	Unblock(ctx context.Context, telegramID int64) error
}

// Config configures the long-polling bot.
type Config struct {
	Token        string
	AdminChatIDs []int64
	PollTimeout  time.Duration
	// HandleTimeout bounds the processing of one update.
	HandleTimeout time.Duration
}

// Bot is the Telegram transport: it converts updates into conversation
// handler calls and renders replies back into messages.
type Bot struct {
	tb      *tele.Bot
	handler *conversation.Handler
	guard   Moderation
	cfg     Config
	logger  *logging.Logger

	// locks serializes handling per user: telebot dispatches updates on
	// separate goroutines, and the FSM assumes one in-flight update per chat.
	locks sync.Map
}

// Connect dials the Bot API and prepares a long poller. The session is
// shared between NewBot and NewNotifier.
func Connect(cfg Config) (*tele.Bot, error) {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: build bot: %w", err)
	}
	return tb, nil
}

func NewBot(tb *tele.Bot, cfg Config, handler *conversation.Handler, guard Moderation, logger *logging.Logger) *Bot {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 90 * time.Second
	}

	b := &Bot{tb: tb, handler: handler, guard: guard, cfg: cfg, logger: logger}
	tb.Handle("/start", b.onStart)
	tb.Handle("/unblock", b.onUnblock)
	tb.Handle(tele.OnText, b.onText)
	tb.Handle(tele.OnCallback, b.onCallback)
	return b
}

// Start begins long polling and blocks until Stop is called.
func (b *Bot) Start() {
	b.logger.Info("telegram bot started")
	b.tb.Start()
}

func (b *Bot) Stop() {
	b.tb.Stop()
	b.logger.Info("telegram bot stopped")
}

func (b *Bot) userLock(id int64) *sync.Mutex {
	mu, _ := b.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (b *Bot) onStart(c tele.Context) error {
	mu := b.userLock(c.Sender().ID)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := b.updateContext()
	defer cancel()

	replies, err := b.handler.Start(ctx, incoming(c))
	if err != nil {
		b.logger.Error("start handling failed", "error", err)
		return nil
	}
	return b.send(c, replies)
}

func (b *Bot) onText(c tele.Context) error {
	mu := b.userLock(c.Sender().ID)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := b.updateContext()
	defer cancel()

	in := incoming(c)
	in.Text = c.Text()
	replies, err := b.handler.Handle(ctx, in)
	if err != nil {
		b.logger.Error("text handling failed", "telegram_id", in.TelegramID, "error", err)
		return nil
	}
	return b.send(c, replies)
}

func (b *Bot) onCallback(c tele.Context) error {
	mu := b.userLock(c.Sender().ID)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := b.updateContext()
	defer cancel()

	in := incoming(c)
	in.Callback = strings.TrimSpace(strings.TrimPrefix(c.Callback().Data, "\f"))
	replies, err := b.handler.Handle(ctx, in)
	if respondErr := c.Respond(&tele.CallbackResponse{}); respondErr != nil {
		b.logger.Warn("callback ack failed", "error", respondErr)
	}
	if err != nil {
		b.logger.Error("callback handling failed", "telegram_id", in.TelegramID, "error", err)
		return nil
	}
	return b.send(c, replies)
}

// onUnblock lets operators lift a moderation block: /unblock <telegram_id>.
func (b *Bot) onUnblock(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Использование: /unblock <telegram_id>")
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send("Использование: /unblock <telegram_id>")
	}

	ctx, cancel := b.updateContext()
	defer cancel()
	if err := b.guard.Unblock(ctx, target); err != nil {
		b.logger.Error("unblock failed", "target", target, "error", err)
		return c.Send(fmt.Sprintf("Не удалось разблокировать пользователя %d.", target))
	}
	return c.Send(fmt.Sprintf("✅ Пользователь %d разблокирован.", target))
}

func (b *Bot) send(c tele.Context, replies []conversation.Reply) error {
	var errs []error
	for _, r := range replies {
		if markup := inlineMarkup(r.Buttons); markup != nil {
			errs = append(errs, c.Send(r.Text, markup))
			continue
		}
		errs = append(errs, c.Send(r.Text))
	}
	return errors.Join(errs...)
}

func (b *Bot) isAdmin(id int64) bool {
	for _, admin := range b.cfg.AdminChatIDs {
		if admin == id {
			return true
		}
	}
	return false
}

func (b *Bot) updateContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.cfg.HandleTimeout)
}

func incoming(c tele.Context) conversation.Incoming {
	sender := c.Sender()
	return conversation.Incoming{
		TelegramID: sender.ID,
		Username:   sender.Username,
		FirstName:  sender.FirstName,
	}
}

func inlineMarkup(buttons [][]conversation.Button) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tele.InlineButton, 0, len(buttons))
	for _, r := range buttons {
		row := make([]tele.InlineButton, 0, len(r))
		for _, btn := range r {
			row = append(row, tele.InlineButton{Text: btn.Text, Data: btn.Data})
		}
		rows = append(rows, row)
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}
