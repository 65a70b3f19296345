package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v3"

	"github.com/codeclass-ai/schoolbot/internal/conversation"
	"github.com/codeclass-ai/schoolbot/internal/store"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// Sender is the outbound slice of the Telegram API. *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// ProfileDirectory resolves internal profile IDs to Telegram accounts.
type ProfileDirectory interface {
	ByID(ctx context.Context, id uuid.UUID) (*store.Profile, error)
}

type DependentDirectory interface {
	ByID(ctx context.Context, id uuid.UUID) (*store.Dependent, error)
}

// DialogDirectory supplies the dialog window attached to block reports.
type DialogDirectory interface {
	RecentTurns(ctx context.Context, profileID uuid.UUID, limit int) ([]store.DialogTurn, error)
}

// Reminder wording, one variant picked per message. Placeholders are
// substituted literally; the child's name is kept in a case-neutral
// position.
var reminderTemplates = []string{
	"👋 Здравствуйте, {parent}!\n\n" +
		"Напоминаем, что пробный урок для вашего ребёнка ({child}) состоится {when} в {time} (по московскому времени).\n\n" +
		"Если Ваши планы изменились, то перенесите или отмените запись, чтобы наши педагоги смогли вовремя начать занятие. " +
		"Желаем плодотворного урока!🧡\n" +
		"С уважением, команда школы",
	"👋 Добрый день, {parent}!\n\n" +
		"Уже совсем скоро — пробный урок для вашего ребёнка ({child}):\n" +
		"📅 {when}, 🕓 {time} (время московское).\n\n" +
		"Если планы поменялись — дайте нам знать. " +
		"Мы с радостью подберём другое время 😊\n" +
		"Пусть занятие пройдёт с интересом и пользой!\n" +
		"С теплом, команда",
	"👋 Здравствуйте, {parent}!\n\n" +
		"Напоминаем: пробный урок для вашего ребёнка ({child}) состоится {when} в {time} (МСК).\n\n" +
		"Если необходимо — вы можете перенести или отменить занятие.\n" +
		"Спасибо, что с нами!\n" +
		"С уважением, команда",
	"👋 {parent}, добрый день!\n\n" +
		"Мы ждём вашего ребёнка ({child}) на пробный урок {when} в {time} (по Москве).\n\n" +
		"Если что-то изменилось — напишите нам, и мы найдём удобное время.\n" +
		"Пусть этот урок станет первым шагом в мир программирования! 💻\n" +
		"С уважением, команда",
}

const (
	defaultParent = "уважаемый родитель"
	defaultChild  = "ваш ребёнок"
)

// Notifier delivers reminders and operator notifications over Telegram. It
// implements the notifier surfaces of the scheduler, the moderation guard
// and the conversation handler.
type Notifier struct {
	sender     Sender
	profiles   ProfileDirectory
	dependents DependentDirectory
	dialog     DialogDirectory
	admins     []int64
	loc        *time.Location
	rnd        *rand.Rand
	logger     *logging.Logger
}

func NewNotifier(sender Sender, profiles ProfileDirectory, dependents DependentDirectory,
	dialog DialogDirectory, admins []int64, loc *time.Location, rnd *rand.Rand, logger *logging.Logger) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{
		sender:     sender,
		profiles:   profiles,
		dependents: dependents,
		dialog:     dialog,
		admins:     admins,
		loc:        loc,
		rnd:        rnd,
		logger:     logger,
	}
}

// SendLessonReminder messages the lesson's parent with reschedule and cancel
// buttons attached.
func (n *Notifier) SendLessonReminder(ctx context.Context, lesson store.Lesson, when string) error {
	profile, err := n.profiles.ByID(ctx, lesson.ProfileID)
	if err != nil {
		return fmt.Errorf("telegram: resolve reminder recipient: %w", err)
	}

	text := n.reminderText(ctx, profile, lesson, when)
	markup := inlineMarkup([][]conversation.Button{{
		{Text: "🔄 Перенести", Data: conversation.CallbackReschedulePrefix + lesson.EventRef},
		{Text: "❌ Отменить", Data: conversation.CallbackCancelPrefix + lesson.EventRef},
	}})

	if _, err := n.sender.Send(&tele.User{ID: profile.TelegramID}, text, markup); err != nil {
		return fmt.Errorf("telegram: send reminder to %d: %w", profile.TelegramID, err)
	}
	return nil
}

func (n *Notifier) reminderText(ctx context.Context, profile *store.Profile, lesson store.Lesson, when string) string {
	parent := profile.FullName
	if parent == "" {
		parent = defaultParent
	}
	child := defaultChild
	if lesson.DependentID != uuid.Nil {
		if dep, err := n.dependents.ByID(ctx, lesson.DependentID); err == nil && dep.Name != "" {
			child = dep.Name
		}
	}

	tpl := reminderTemplates[n.rnd.Intn(len(reminderTemplates))]
	return strings.NewReplacer(
		"{parent}", parent,
		"{child}", child,
		"{when}", when,
		"{time}", lesson.ScheduledAt.In(n.loc).Format("15:04"),
	).Replace(tpl)
}

// NotifyAdmins fans a message out to every operator chat.
func (n *Notifier) NotifyAdmins(ctx context.Context, text string) error {
	var errs []error
	for _, id := range n.admins {
		if _, err := n.sender.Send(&tele.User{ID: id}, text); err != nil {
			n.logger.Warn("admin notification failed", "admin_id", id, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const blockReportTurns = 10

// NotifyBlocked tells the operators a profile was blocked, attaching the
// recent dialog window and the command that lifts the block.
func (n *Notifier) NotifyBlocked(ctx context.Context, profile *store.Profile, reason string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "🚫 Бот заблокировал пользователя @%s (%d).\nПричина: %s\n",
		profile.Username, profile.TelegramID, reason)

	if n.dialog != nil {
		turns, err := n.dialog.RecentTurns(ctx, profile.ID, blockReportTurns)
		if err != nil {
			n.logger.Warn("dialog window lookup failed", "profile_id", profile.ID, "error", err)
		} else if len(turns) > 0 {
			b.WriteString("\nПоследние сообщения:\n")
			for _, t := range turns {
				fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Message)
			}
		}
	}

	fmt.Fprintf(&b, "\nРазблокировать: /unblock %d", profile.TelegramID)
	return n.NotifyAdmins(ctx, b.String())
}
