package telegram

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/codeclass-ai/schoolbot/internal/conversation"
	"github.com/codeclass-ai/schoolbot/internal/store"
)

type sentMessage struct {
	to   tele.Recipient
	what interface{}
	opts []interface{}
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.sent = append(f.sent, sentMessage{to: to, what: what, opts: opts})
	if f.err != nil {
		return nil, f.err
	}
	return &tele.Message{}, nil
}

type fakeProfileDir struct {
	profile *store.Profile
	err     error
}

func (f *fakeProfileDir) ByID(_ context.Context, _ uuid.UUID) (*store.Profile, error) {
	return f.profile, f.err
}

type fakeDependentDir struct {
	dep *store.Dependent
	err error
}

func (f *fakeDependentDir) ByID(_ context.Context, _ uuid.UUID) (*store.Dependent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dep, nil
}

type fakeDialogDir struct {
	turns []store.DialogTurn
	err   error
}

func (f *fakeDialogDir) RecentTurns(_ context.Context, _ uuid.UUID, _ int) ([]store.DialogTurn, error) {
	return f.turns, f.err
}

func moscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return loc
}

func testLesson() store.Lesson {
	return store.Lesson{
		ID:          uuid.New(),
		ProfileID:   uuid.New(),
		DependentID: uuid.New(),
		EventRef:    "evt-42",
		ScheduledAt: time.Date(2026, 9, 2, 7, 0, 0, 0, time.UTC),
	}
}

func TestSendLessonReminder(t *testing.T) {
	sender := &fakeSender{}
	profiles := &fakeProfileDir{profile: &store.Profile{TelegramID: 77, FullName: "Анна"}}
	deps := &fakeDependentDir{dep: &store.Dependent{Name: "Миша"}}
	n := NewNotifier(sender, profiles, deps, nil, nil, moscow(t), rand.New(rand.NewSource(1)), testLogger())

	err := n.SendLessonReminder(context.Background(), testLesson(), "завтра")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	assert.Equal(t, &tele.User{ID: 77}, sender.sent[0].to)

	text, ok := sender.sent[0].what.(string)
	require.True(t, ok)
	assert.Contains(t, text, "Анна")
	assert.Contains(t, text, "Миша")
	assert.Contains(t, text, "завтра")
	// 07:00 UTC is 10:00 in Moscow.
	assert.Contains(t, text, "10:00")

	require.Len(t, sender.sent[0].opts, 1)
	markup, ok := sender.sent[0].opts[0].(*tele.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, conversation.CallbackReschedulePrefix+"evt-42", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, conversation.CallbackCancelPrefix+"evt-42", markup.InlineKeyboard[0][1].Data)
}

func TestSendLessonReminderFallbackNames(t *testing.T) {
	sender := &fakeSender{}
	profiles := &fakeProfileDir{profile: &store.Profile{TelegramID: 77}}
	deps := &fakeDependentDir{err: store.ErrNotFound}
	n := NewNotifier(sender, profiles, deps, nil, nil, moscow(t), rand.New(rand.NewSource(1)), testLogger())

	err := n.SendLessonReminder(context.Background(), testLesson(), "сегодня")
	require.NoError(t, err)

	text := sender.sent[0].what.(string)
	assert.Contains(t, text, "уважаемый родитель")
	assert.Contains(t, text, "ваш ребёнок")
}

func TestSendLessonReminderUnknownProfile(t *testing.T) {
	sender := &fakeSender{}
	profiles := &fakeProfileDir{err: store.ErrNotFound}
	n := NewNotifier(sender, profiles, &fakeDependentDir{}, nil, nil, nil, nil, testLogger())

	err := n.SendLessonReminder(context.Background(), testLesson(), "сегодня")
	require.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestNotifyAdminsFansOut(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, &fakeProfileDir{}, &fakeDependentDir{}, nil, []int64{1, 2, 3}, nil, nil, testLogger())

	require.NoError(t, n.NotifyAdmins(context.Background(), "привет"))
	require.Len(t, sender.sent, 3)
	assert.Equal(t, &tele.User{ID: 2}, sender.sent[1].to)
}

func TestNotifyAdminsReportsSendErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram 502")}
	n := NewNotifier(sender, &fakeProfileDir{}, &fakeDependentDir{}, nil, []int64{1, 2}, nil, nil, testLogger())

	err := n.NotifyAdmins(context.Background(), "привет")
	require.Error(t, err)
	// Sending is attempted for every admin even after a failure.
	assert.Len(t, sender.sent, 2)
}

func TestNotifyBlockedMentionsUnblockCommand(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, &fakeProfileDir{}, &fakeDependentDir{}, nil, []int64{9}, nil, nil, testLogger())

	profile := &store.Profile{TelegramID: 555, Username: "anna_k"}
	require.NoError(t, n.NotifyBlocked(context.Background(), profile, "спам"))

	text := sender.sent[0].what.(string)
	assert.Contains(t, text, "@anna_k")
	assert.Contains(t, text, "спам")
	assert.Contains(t, text, "/unblock 555")
}

func TestNotifyBlockedAttachesDialogWindow(t *testing.T) {
	sender := &fakeSender{}
	dialog := &fakeDialogDir{turns: []store.DialogTurn{
		{Role: "user", Message: "купите крипту"},
		{Role: "assistant", Message: "Я могу помочь только с вопросами о школе."},
	}}
	n := NewNotifier(sender, &fakeProfileDir{}, &fakeDependentDir{}, dialog, []int64{9}, nil, nil, testLogger())

	profile := &store.Profile{TelegramID: 555, Username: "anna_k"}
	require.NoError(t, n.NotifyBlocked(context.Background(), profile, "спам"))

	text := sender.sent[0].what.(string)
	assert.Contains(t, text, "Последние сообщения:")
	assert.Contains(t, text, "user: купите крипту")
	assert.Contains(t, text, "assistant: Я могу помочь только с вопросами о школе.")
}
