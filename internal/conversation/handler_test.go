package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclass-ai/schoolbot/internal/booking"
	"github.com/codeclass-ai/schoolbot/internal/intent"
	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/internal/moderation"
	"github.com/codeclass-ai/schoolbot/internal/schedule"
	"github.com/codeclass-ai/schoolbot/internal/store"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

var testNow = time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

type fakeProfiles struct {
	profile          *store.Profile
	onboardingMarked bool
	completed        *store.OnboardingResult
	completeErr      error
}

func (f *fakeProfiles) GetOrCreate(ctx context.Context, telegramID int64, username string) (*store.Profile, error) {
	return f.profile, nil
}

func (f *fakeProfiles) MarkOnboardingStarted(ctx context.Context, telegramID int64) error {
	f.onboardingMarked = true
	return nil
}

func (f *fakeProfiles) CompleteOnboarding(ctx context.Context, telegramID int64, res store.OnboardingResult) (*store.Dependent, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.completed = &res
	now := testNow
	f.profile.OnboardingCompletedAt = &now
	return &store.Dependent{
		ID:         uuid.New(),
		ProfileID:  f.profile.ID,
		Name:       res.ChildName,
		Age:        res.ChildAge,
		Interests:  res.Interests,
		CourseName: res.CourseName,
	}, nil
}

type fakeStates struct {
	state   string
	payload []byte
}

func (f *fakeStates) Get(ctx context.Context, profileID uuid.UUID) (*store.FSMState, error) {
	if f.state == "" {
		return nil, store.ErrNotFound
	}
	return &store.FSMState{ProfileID: profileID, State: f.state, Payload: f.payload}, nil
}

func (f *fakeStates) Set(ctx context.Context, profileID uuid.UUID, state string, payload []byte) error {
	f.state, f.payload = state, payload
	return nil
}

func (f *fakeStates) Clear(ctx context.Context, profileID uuid.UUID) error {
	f.state, f.payload = "", nil
	return nil
}

type fakeDependents struct {
	deps []store.Dependent
}

func (f *fakeDependents) ByProfile(ctx context.Context, profileID uuid.UUID) ([]store.Dependent, error) {
	return f.deps, nil
}

type fakeWaitlist struct {
	entries []store.WaitlistEntry
}

func (f *fakeWaitlist) Add(ctx context.Context, e *store.WaitlistEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

type fakeTranscript struct {
	turns []llm.Message
}

func (f *fakeTranscript) Append(ctx context.Context, profileID uuid.UUID, role, message, state, intent string) error {
	f.turns = append(f.turns, llm.Message{Role: role, Content: message})
	return nil
}

func (f *fakeTranscript) Recent(ctx context.Context, profileID uuid.UUID) ([]llm.Message, error) {
	return f.turns, nil
}

type fakeRecognizer struct {
	tags map[string]string
}

func (f *fakeRecognizer) Recognize(ctx context.Context, query string) string {
	return f.tags[query]
}

type fakeTemplates struct {
	templates map[string]*intent.Template
}

func (f *fakeTemplates) TemplateFor(tag string) (*intent.Template, bool) {
	tpl, ok := f.templates[tag]
	return tpl, ok
}

type fakeRelevance struct {
	relevant bool
}

func (f *fakeRelevance) IsRelevantWithLayoutCorrection(ctx context.Context, question, lastAssistant string) bool {
	return f.relevant
}

type passthroughCorrector struct{}

func (passthroughCorrector) Correct(ctx context.Context, question string) string { return question }

type fakeResponder struct {
	answer string
	err    error
}

func (f *fakeResponder) Answer(ctx context.Context, question string, history []llm.Message, focus string) (string, error) {
	return f.answer, f.err
}

type fakeSlots struct {
	slots []schedule.Slot
	err   error
}

func (f *fakeSlots) FreeSlots(ctx context.Context, now time.Time) ([]schedule.Slot, error) {
	return f.slots, f.err
}

type fakeBooker struct {
	result    *booking.Result
	bookErr   error
	lastReq   *booking.Request
	cancelled []string
	cancelErr error
	events    []booking.Event
}

func (f *fakeBooker) Book(ctx context.Context, req booking.Request) (*booking.Result, error) {
	f.lastReq = &req
	return f.result, f.bookErr
}

func (f *fakeBooker) Cancel(ctx context.Context, eventRef string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, eventRef)
	return nil
}

func (f *fakeBooker) UserEvents(ctx context.Context, profile *store.Profile, now time.Time) ([]booking.Event, error) {
	return f.events, nil
}

type fakeGuard struct {
	verdicts []*moderation.Verdict
	calls    int
}

func (f *fakeGuard) HandleOffTopic(ctx context.Context, profile *store.Profile) (*moderation.Verdict, error) {
	v := f.verdicts[f.calls%len(f.verdicts)]
	f.calls++
	return v, nil
}

type fakeAdmins struct {
	messages []string
}

func (f *fakeAdmins) NotifyAdmins(ctx context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

type fixture struct {
	handler    *Handler
	profiles   *fakeProfiles
	states     *fakeStates
	dependents *fakeDependents
	waitlist   *fakeWaitlist
	history    *fakeTranscript
	recognizer *fakeRecognizer
	relevance  *fakeRelevance
	responder  *fakeResponder
	slots      *fakeSlots
	booker     *fakeBooker
	guard      *fakeGuard
	admins     *fakeAdmins
}

func testSlot(day, hour int) schedule.Slot {
	start := time.Date(2026, time.September, day, hour, 0, 0, 0, time.UTC)
	return schedule.Slot{Start: start, End: start.Add(time.Hour)}
}

func onboardedProfile() *store.Profile {
	done := testNow.Add(-24 * time.Hour)
	return &store.Profile{
		ID:                    uuid.New(),
		TelegramID:            42,
		Username:              "anna_k",
		FullName:              "Анна",
		OnboardingCompletedAt: &done,
	}
}

func newFixture(profile *store.Profile) *fixture {
	f := &fixture{
		profiles:   &fakeProfiles{profile: profile},
		states:     &fakeStates{},
		dependents: &fakeDependents{},
		waitlist:   &fakeWaitlist{},
		history:    &fakeTranscript{},
		recognizer: &fakeRecognizer{tags: map[string]string{}},
		relevance:  &fakeRelevance{relevant: true},
		responder:  &fakeResponder{answer: "Конечно, расскажу о курсах!"},
		slots:      &fakeSlots{slots: []schedule.Slot{testSlot(2, 10), testSlot(2, 11)}},
		booker:     &fakeBooker{result: &booking.Result{Success: true, EventRef: "evt-1"}},
		guard:      &fakeGuard{verdicts: []*moderation.Verdict{{Count: 1, Reply: "не по теме"}}},
		admins:     &fakeAdmins{},
	}
	f.handler = NewHandler(Deps{
		Profiles:     f.profiles,
		States:       f.states,
		Dependents:   f.dependents,
		Waitlist:     f.waitlist,
		History:      f.history,
		Renderer:     NewRenderer(nil, nil, testLogger()),
		Recognizer:   f.recognizer,
		Templates:    &fakeTemplates{templates: map[string]*intent.Template{}},
		Relevance:    f.relevance,
		Corrector:    passthroughCorrector{},
		Responder:    f.responder,
		Slots:        f.slots,
		Booker:       f.booker,
		Guard:        f.guard,
		Admins:       f.admins,
		SlotDuration: time.Hour,
		Logger:       testLogger(),
		Now:          func() time.Time { return testNow },
	})
	return f
}

func testLogger() *logging.Logger {
	return logging.New("error", "text")
}

func text(t *testing.T, replies []Reply) string {
	t.Helper()
	require.NotEmpty(t, replies)
	return replies[0].Text
}

func TestBlockedProfileIsIgnored(t *testing.T) {
	profile := onboardedProfile()
	profile.Blocked = true
	f := newFixture(profile)

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "привет"})
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestEnrollIntentStartsOnboardingForNewProfile(t *testing.T) {
	f := newFixture(&store.Profile{ID: uuid.New(), TelegramID: 42, Username: "anna_k"})
	f.recognizer.tags["хочу записаться"] = IntentEnroll

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "хочу записаться"})
	require.NoError(t, err)
	assert.Equal(t, textOnboardingIntro, text(t, replies))
	assert.True(t, f.profiles.onboardingMarked)
	assert.Equal(t, StateEnteringParentName, f.states.state)
}

func TestEnrollIntentShowsSlotsWhenOnboarded(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.recognizer.tags["запишите нас"] = IntentEnroll

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "запишите нас"})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "Найдено 2 свободных слотов")
	assert.Equal(t, StateSelectingSlot, f.states.state)

	// one button per slot plus the back row
	require.Len(t, replies[0].Buttons, 3)
	assert.Equal(t, CallbackSlotPrefix+"2026-09-02T10:00", replies[0].Buttons[0][0].Data)
}

func TestOnboardingQuestionnaire(t *testing.T) {
	ctx := context.Background()
	f := newFixture(&store.Profile{ID: uuid.New(), TelegramID: 42, Username: "anna_k"})
	f.recognizer.tags["запись"] = IntentEnroll

	_, err := f.handler.Handle(ctx, Incoming{TelegramID: 42, Text: "запись"})
	require.NoError(t, err)

	step := func(input string) []Reply {
		replies, err := f.handler.Handle(ctx, Incoming{TelegramID: 42, Text: input})
		require.NoError(t, err)
		return replies
	}

	assert.Contains(t, text(t, step("Анна")), "Приятно познакомиться, Анна!")
	assert.Contains(t, text(t, step("Миша")), "Сколько лет Миша?")

	// age validation re-prompts without leaving the step
	assert.Equal(t, textAgeNotNumeric, text(t, step("десять")))
	assert.Equal(t, textAgeOutOfRange, text(t, step("25")))
	assert.Equal(t, StateEnteringChildAge, f.states.state)

	assert.Equal(t, textAskInterests, text(t, step("12")))
	contactReplies := step("роботы и игры")
	assert.Equal(t, textAskContactMethod, text(t, contactReplies))
	require.NotEmpty(t, contactReplies[0].Buttons)

	replies, err := f.handler.Handle(ctx, Incoming{TelegramID: 42, Username: "anna_k", Callback: CallbackContactPhone})
	require.NoError(t, err)
	assert.Equal(t, textAskPhone, text(t, replies))

	finish := step("+7 999 123-45-67")
	require.NotEmpty(t, finish)
	assert.Contains(t, finish[0].Text, "Отлично, Анна!")
	assert.Contains(t, finish[0].Text, CourseJunior)

	require.NotNil(t, f.profiles.completed)
	assert.Equal(t, "Анна", f.profiles.completed.ParentName)
	assert.Equal(t, 12, f.profiles.completed.ChildAge)
	assert.Equal(t, "+7 999 123-45-67", f.profiles.completed.Phone)
	assert.Equal(t, CourseJunior, f.profiles.completed.CourseName)

	// enrollment resumes straight into slot selection
	require.Len(t, finish, 2)
	assert.Contains(t, finish[1].Text, "Выберите удобное время")
	assert.Equal(t, StateSelectingSlot, f.states.state)
}

func TestSlotSelectionRejectsStaleSlot(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.states.state = StateSelectingSlot

	replies, err := f.handler.Handle(context.Background(), Incoming{
		TelegramID: 42,
		Callback:   CallbackSlotPrefix + "2026-09-02T09:00",
	})
	require.NoError(t, err)
	assert.Equal(t, textSlotGone, text(t, replies))
	assert.Equal(t, "", f.states.state)
}

func TestBookingHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(onboardedProfile())
	f.dependents.deps = []store.Dependent{{Name: "Миша", Age: 12, CourseName: CourseJunior}}
	f.states.state = StateSelectingSlot

	replies, err := f.handler.Handle(ctx, Incoming{
		TelegramID: 42,
		Callback:   CallbackSlotPrefix + "2026-09-02T10:00",
	})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Подтвердите бронирование")
	assert.Equal(t, StateConfirming, f.states.state)

	replies, err = f.handler.Handle(ctx, Incoming{TelegramID: 42, Callback: CallbackConfirmBooking})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Бронирование успешно создано")
	assert.Equal(t, "", f.states.state)

	require.NotNil(t, f.booker.lastReq)
	assert.Equal(t, "2026-09-02T10:00", f.booker.lastReq.Slot.Key())
	assert.Equal(t, CourseJunior, f.booker.lastReq.CourseName)
	assert.Empty(t, f.booker.lastReq.SupersedeEventRef)

	require.Len(t, f.admins.messages, 1)
	assert.Contains(t, f.admins.messages[0], "Новое бронирование")
	assert.Contains(t, f.admins.messages[0], "@anna_k")
}

func TestBookingConflictReportsReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(onboardedProfile())
	f.booker.result = &booking.Result{Success: false, Reason: booking.ReasonSlotUnavailable}
	f.states.state = StateConfirming
	payload, err := (Payload{SlotKey: "2026-09-02T10:00"}).Marshal()
	require.NoError(t, err)
	f.states.payload = payload

	replies, err := f.handler.Handle(ctx, Incoming{TelegramID: 42, Callback: CallbackConfirmBooking})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Не удалось создать бронирование")
	assert.Contains(t, text(t, replies), booking.ReasonSlotUnavailable)
	assert.Empty(t, f.admins.messages)
}

func TestRescheduleFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(onboardedProfile())
	f.recognizer.tags["перенесите урок"] = IntentReschedule
	f.booker.events = []booking.Event{{
		ID:    "evt-old",
		Start: time.Date(2026, time.September, 3, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.September, 3, 16, 0, 0, 0, time.UTC),
	}}

	replies, err := f.handler.Handle(ctx, Incoming{TelegramID: 42, Text: "перенесите урок"})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Выберите запись для переноса")
	assert.Equal(t, StateSelectingEventToReschedule, f.states.state)
	assert.Equal(t, CallbackReschedulePrefix+"evt-old", replies[0].Buttons[0][0].Data)

	replies, err = f.handler.Handle(ctx, Incoming{TelegramID: 42, Callback: CallbackReschedulePrefix + "evt-old"})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Перенос записи")
	assert.Equal(t, StateRescheduling, f.states.state)

	replies, err = f.handler.Handle(ctx, Incoming{TelegramID: 42, Callback: CallbackSlotPrefix + "2026-09-02T11:00"})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Подтвердите перенос записи")

	replies, err = f.handler.Handle(ctx, Incoming{TelegramID: 42, Callback: CallbackConfirmBooking})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Запись успешно перенесена")

	require.NotNil(t, f.booker.lastReq)
	assert.Equal(t, "evt-old", f.booker.lastReq.SupersedeEventRef)
	assert.Equal(t, "2026-09-02T11:00", f.booker.lastReq.Slot.Key())
}

func TestCancelFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(onboardedProfile())
	f.recognizer.tags["отмените запись"] = IntentCancel
	f.booker.events = []booking.Event{{
		ID:    "evt-1",
		Start: time.Date(2026, time.September, 3, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.September, 3, 16, 0, 0, 0, time.UTC),
	}}

	replies, err := f.handler.Handle(ctx, Incoming{TelegramID: 42, Text: "отмените запись"})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Выберите запись для отмены")

	replies, err = f.handler.Handle(ctx, Incoming{TelegramID: 42, Callback: CallbackCancelPrefix + "evt-1"})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Вы уверены, что хотите отменить запись?")
	assert.Equal(t, StateConfirmingCancel, f.states.state)

	replies, err = f.handler.Handle(ctx, Incoming{TelegramID: 42, Callback: CallbackConfirmCancel})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Запись успешно отменена")
	assert.Equal(t, []string{"evt-1"}, f.booker.cancelled)
	assert.Equal(t, "", f.states.state)
}

func TestCancelWithoutBookings(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.recognizer.tags["отмена"] = IntentCancel

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "отмена"})
	require.NoError(t, err)
	assert.Equal(t, textNoEventsCancel, text(t, replies))
}

func TestCheckBookingListsEvents(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.recognizer.tags["мои записи"] = IntentCheckBooking
	f.booker.events = []booking.Event{{
		ID:    "evt-1",
		Start: time.Date(2026, time.September, 3, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.September, 3, 16, 0, 0, 0, time.UTC),
	}}

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "мои записи"})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Ваши записи (1)")
	assert.Contains(t, text(t, replies), "15:00")
}

func TestOffTopicLadderOffersHandoff(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.relevance.relevant = false
	f.guard.verdicts = []*moderation.Verdict{
		{Count: 1, Reply: "первый штраф"},
		{Count: 2, Reply: "второй штраф", OfferHandoff: true},
	}

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "как дела на бирже?"})
	require.NoError(t, err)
	assert.Equal(t, "первый штраф", text(t, replies))
	assert.Empty(t, replies[0].Buttons)

	replies, err = f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "а биткоин?"})
	require.NoError(t, err)
	assert.Equal(t, "второй штраф", text(t, replies))
	require.Len(t, replies[0].Buttons, 1)
	assert.Equal(t, CallbackRequestManager, replies[0].Buttons[0][0].Data)
}

func TestKnowledgeBaseCommandStartsEnrollment(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.responder.answer = "[START_ENROLLMENT]"

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "можно на пробный?"})
	require.NoError(t, err)
	assert.Contains(t, text(t, replies), "Выберите удобное время")
	assert.Equal(t, StateSelectingSlot, f.states.state)
}

func TestResponderFailureFallsBack(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.responder.err = errors.New("model unavailable")

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "расскажите о курсах"})
	require.NoError(t, err)
	assert.Equal(t, textFallback, text(t, replies))
	require.Len(t, f.admins.messages, 1)
}

func TestWaitlistFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(onboardedProfile())
	f.recognizer.tags["запись"] = IntentEnroll
	f.slots.slots = nil
	f.dependents.deps = []store.Dependent{{Age: 7}}

	replies, err := f.handler.Handle(ctx, Incoming{TelegramID: 42, Text: "запись"})
	require.NoError(t, err)
	assert.Equal(t, textWaitlistOffer, text(t, replies))
	require.Len(t, replies[0].Buttons, 2)

	replies, err = f.handler.Handle(ctx, Incoming{TelegramID: 42, Callback: CallbackWaitlistJoin})
	require.NoError(t, err)
	assert.Equal(t, textWaitlistAskContact, text(t, replies))
	assert.Equal(t, StateAwaitingWaitlistContact, f.states.state)

	replies, err = f.handler.Handle(ctx, Incoming{TelegramID: 42, Text: "+7 999 000-00-00"})
	require.NoError(t, err)
	assert.Equal(t, textWaitlistDone, text(t, replies))
	require.Len(t, f.waitlist.entries, 1)
	assert.Equal(t, "+7 999 000-00-00", f.waitlist.entries[0].Contact)
	assert.Equal(t, "до 9 лет", f.waitlist.entries[0].AgeGroup)
	assert.Equal(t, "", f.states.state)
}

func TestTemplateIntentRendersScriptedReply(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.recognizer.tags["сколько стоит"] = "pricing"
	f.handler.d.Templates = &fakeTemplates{templates: map[string]*intent.Template{
		"pricing": {Variants: []string{"{parent_name}, абонемент стоит 5000 ₽ в месяц."}},
	}}

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "сколько стоит"})
	require.NoError(t, err)
	assert.Equal(t, "Анна, абонемент стоит 5000 ₽ в месяц.", text(t, replies))
}

func TestBackToMenuClearsState(t *testing.T) {
	f := newFixture(onboardedProfile())
	f.states.state = StateSelectingSlot

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Callback: CallbackBackToMenu})
	require.NoError(t, err)
	assert.Equal(t, textBackToMenu, text(t, replies))
	assert.Equal(t, "", f.states.state)
}

func TestConfirmWithoutSelectionExpiresSession(t *testing.T) {
	f := newFixture(onboardedProfile())

	replies, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Callback: CallbackConfirmBooking})
	require.NoError(t, err)
	assert.Equal(t, textSessionExpired, text(t, replies))
}

func TestDialogTurnsAreRecorded(t *testing.T) {
	f := newFixture(onboardedProfile())

	_, err := f.handler.Handle(context.Background(), Incoming{TelegramID: 42, Text: "расскажите о курсах"})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(f.history.turns), 2)
	assert.Equal(t, llm.RoleUser, f.history.turns[0].Role)
	assert.Equal(t, "расскажите о курсах", f.history.turns[0].Content)
	assert.Equal(t, llm.RoleAssistant, f.history.turns[1].Role)
}

func TestCourseFocusFollowsDependentAge(t *testing.T) {
	cases := []struct {
		age  int
		want string
	}{
		{12, "course_junior"},
		{15, "course_senior"},
		{7, "default"},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("age_%d", tc.age), func(t *testing.T) {
			f := newFixture(onboardedProfile())
			f.dependents.deps = []store.Dependent{{Age: tc.age}}
			got := f.handler.courseFocus(context.Background(), f.profiles.profile)
			assert.Equal(t, tc.want, got)
		})
	}
}
