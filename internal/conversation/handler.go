package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeclass-ai/schoolbot/internal/booking"
	"github.com/codeclass-ai/schoolbot/internal/intent"
	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/internal/moderation"
	"github.com/codeclass-ai/schoolbot/internal/observability/metrics"
	"github.com/codeclass-ai/schoolbot/internal/rag"
	"github.com/codeclass-ai/schoolbot/internal/schedule"
	"github.com/codeclass-ai/schoolbot/internal/store"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// Incoming is one update from the transport layer. Exactly one of Text and
// Callback is set.
type Incoming struct {
	TelegramID int64
	Username   string
	FirstName  string
	Text       string
	Callback   string
}

// Profiles is the profile surface the handler needs.
type Profiles interface {
	GetOrCreate(ctx context.Context, telegramID int64, username string) (*store.Profile, error)
	MarkOnboardingStarted(ctx context.Context, telegramID int64) error
	CompleteOnboarding(ctx context.Context, telegramID int64, res store.OnboardingResult) (*store.Dependent, error)
}

// States persists the conversation position between updates.
type States interface {
	Get(ctx context.Context, profileID uuid.UUID) (*store.FSMState, error)
	Set(ctx context.Context, profileID uuid.UUID, state string, payload []byte) error
	Clear(ctx context.Context, profileID uuid.UUID) error
}

type Dependents interface {
	ByProfile(ctx context.Context, profileID uuid.UUID) ([]store.Dependent, error)
}

type Waitlist interface {
	Add(ctx context.Context, e *store.WaitlistEntry) error
}

// SlotSource produces bookable slots.
type SlotSource interface {
	FreeSlots(ctx context.Context, now time.Time) ([]schedule.Slot, error)
}

// Booker executes booking transactions.
type Booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
	Cancel(ctx context.Context, eventRef string) error
	UserEvents(ctx context.Context, profile *store.Profile, now time.Time) ([]booking.Event, error)
}

// Recognizer maps free text to an intent tag, empty when nothing matched.
type Recognizer interface {
	Recognize(ctx context.Context, query string) string
}

// Templates resolves scripted templates by intent tag.
type Templates interface {
	TemplateFor(tag string) (*intent.Template, bool)
}

// Relevance decides whether a question belongs to the school domain.
type Relevance interface {
	IsRelevantWithLayoutCorrection(ctx context.Context, question, lastAssistant string) bool
}

// Corrector cleans up user text before it reaches the knowledge base.
type Corrector interface {
	Correct(ctx context.Context, question string) string
}

// Answerer generates a grounded free-form reply.
type Answerer interface {
	Answer(ctx context.Context, question string, history []llm.Message, focus string) (string, error)
}

// Moderator runs the off-topic escalation ladder.
type Moderator interface {
	HandleOffTopic(ctx context.Context, profile *store.Profile) (*moderation.Verdict, error)
}

// Transcript is the dialog history service.
type Transcript interface {
	Append(ctx context.Context, profileID uuid.UUID, role, message, state, intent string) error
	Recent(ctx context.Context, profileID uuid.UUID) ([]llm.Message, error)
}

// Announcer delivers out-of-band notifications to the school's operators.
type Announcer interface {
	NotifyAdmins(ctx context.Context, text string) error
}

const maxSlotButtons = 30

// Deps wires the handler. Admins, Metrics and Logger may be nil.
type Deps struct {
	Profiles   Profiles
	States     States
	Dependents Dependents
	Waitlist   Waitlist
	History    Transcript
	Renderer   *Renderer
	Recognizer Recognizer
	Templates  Templates
	Relevance  Relevance
	Corrector  Corrector
	Responder  Answerer
	Slots      SlotSource
	Booker     Booker
	Guard      Moderator
	Admins     Announcer
	Metrics    *metrics.BotMetrics

	// SlotDuration must match the slot engine's configuration so stored
	// slot keys round-trip into full slots.
	SlotDuration time.Duration

	Logger *logging.Logger
	Now    func() time.Time
}

// Handler is the conversation brain: it owns state transitions, intent
// dispatch and the escalation ladder, and leaves message delivery to the
// transport layer.
type Handler struct {
	d      Deps
	logger *logging.Logger
	now    func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.SlotDuration <= 0 {
		d.SlotDuration = time.Hour
	}
	return &Handler{d: d, logger: d.Logger, now: d.Now}
}

// Start resets any flow in progress and shows the welcome screen: an
// invitation to the questionnaire for new families, the main menu for
// returning ones.
func (h *Handler) Start(ctx context.Context, in Incoming) ([]Reply, error) {
	profile, err := h.d.Profiles.GetOrCreate(ctx, in.TelegramID, in.Username)
	if err != nil {
		return nil, fmt.Errorf("conversation: resolve profile: %w", err)
	}
	if profile.Blocked {
		return nil, nil
	}
	h.clearState(ctx, profile.ID)

	if !profile.Onboarded() {
		return []Reply{{Text: textWelcomeNew, Buttons: MainMenu()}}, nil
	}
	name := profile.FullName
	if name == "" {
		name = "уважаемый родитель"
	}
	return []Reply{{Text: fmt.Sprintf(textWelcomeBack, name), Buttons: MainMenu()}}, nil
}

// Handle processes one update and returns the replies to send. Blocked
// profiles are ignored entirely.
func (h *Handler) Handle(ctx context.Context, in Incoming) ([]Reply, error) {
	profile, err := h.d.Profiles.GetOrCreate(ctx, in.TelegramID, in.Username)
	if err != nil {
		return nil, fmt.Errorf("conversation: resolve profile: %w", err)
	}
	if profile.Blocked {
		h.d.Metrics.ObserveMessage("blocked")
		return nil, nil
	}

	state, payload, err := h.currentState(ctx, profile)
	if err != nil {
		return nil, err
	}

	if in.Callback != "" {
		h.d.Metrics.ObserveMessage("callback")
		return h.handleCallback(ctx, profile, state, payload, in)
	}

	h.d.Metrics.ObserveMessage("text")
	h.logTurn(ctx, profile.ID, llm.RoleUser, in.Text, state)
	replies, err := h.handleText(ctx, profile, state, payload, in)
	for _, r := range replies {
		h.logTurn(ctx, profile.ID, llm.RoleAssistant, r.Text, state)
	}
	return replies, err
}

func (h *Handler) currentState(ctx context.Context, profile *store.Profile) (string, Payload, error) {
	st, err := h.d.States.Get(ctx, profile.ID)
	if errors.Is(err, store.ErrNotFound) {
		return StateIdle, Payload{}, nil
	}
	if err != nil {
		return "", Payload{}, fmt.Errorf("conversation: load state: %w", err)
	}
	payload, err := UnmarshalPayload(st.Payload)
	if err != nil {
		// A corrupt payload must not strand the user in a dead state.
		h.logger.Warn("dropping corrupt conversation payload", "profile_id", profile.ID, "error", err)
		h.clearState(ctx, profile.ID)
		return StateIdle, Payload{}, nil
	}
	return st.State, payload, nil
}

func (h *Handler) handleText(ctx context.Context, profile *store.Profile, state string, payload Payload, in Incoming) ([]Reply, error) {
	switch state {
	case StateEnteringParentName, StateEnteringChildName, StateEnteringChildAge,
		StateEnteringInterests, StateEnteringPhone, StateEnteringEmail:
		return h.handleOnboardingText(ctx, profile, state, payload, in)
	case StateAwaitingWaitlistContact:
		return h.handleWaitlistContact(ctx, profile, payload, in.Text)
	}
	return h.converse(ctx, profile, in.Text)
}

// converse is the idle-state path: intent dispatch, scripted templates,
// relevance gating and finally the knowledge base.
func (h *Handler) converse(ctx context.Context, profile *store.Profile, text string) ([]Reply, error) {
	tag := h.d.Recognizer.Recognize(ctx, text)
	h.d.Metrics.ObserveIntent("recognizer", tag)

	switch tag {
	case IntentEnroll:
		return h.startEnrollment(ctx, profile)
	case IntentReschedule:
		return h.startReschedule(ctx, profile)
	case IntentCancel:
		return h.startCancellation(ctx, profile)
	case IntentCheckBooking:
		return h.listBookings(ctx, profile)
	case IntentCallManager:
		return h.callManager(ctx, profile)
	}

	if tag != "" {
		if tpl, ok := h.d.Templates.TemplateFor(tag); ok {
			rendered := h.d.Renderer.Render(ctx, tpl, map[string]string{
				"parent_name": profile.FullName,
			})
			if rendered != "" {
				return []Reply{textReply(rendered)}, nil
			}
		}
	}

	lastAssistant := h.lastAssistantMessage(ctx, profile.ID)
	if !h.d.Relevance.IsRelevantWithLayoutCorrection(ctx, text, lastAssistant) {
		return h.offTopic(ctx, profile)
	}

	return h.answer(ctx, profile, text)
}

func (h *Handler) answer(ctx context.Context, profile *store.Profile, text string) ([]Reply, error) {
	history, err := h.d.History.Recent(ctx, profile.ID)
	if err != nil {
		h.logger.Warn("history unavailable, answering without context", "error", err)
	}
	question := h.d.Corrector.Correct(ctx, text)

	reply, err := h.d.Responder.Answer(ctx, question, history, h.courseFocus(ctx, profile))
	if err != nil {
		h.logger.Error("knowledge base answer failed", "error", err)
		h.notifyAdmins(ctx, fmt.Sprintf("⚠️ Бот не смог ответить пользователю %d: %v", profile.TelegramID, err))
		return []Reply{textReply(textFallback)}, nil
	}

	if cmd, ok := rag.Command(reply); ok {
		h.d.Metrics.ObserveIntent("command", cmd)
		switch cmd {
		case rag.StartEnrollmentTag:
			return h.startEnrollment(ctx, profile)
		case rag.CancelBookingTag:
			return h.startCancellation(ctx, profile)
		}
	}
	return []Reply{textReply(reply)}, nil
}

func (h *Handler) offTopic(ctx context.Context, profile *store.Profile) ([]Reply, error) {
	verdict, err := h.d.Guard.HandleOffTopic(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("conversation: off-topic ladder: %w", err)
	}
	h.d.Metrics.ObserveIntent("off_topic", fmt.Sprintf("strike_%d", verdict.Count))

	reply := textReply(verdict.Reply)
	if verdict.OfferHandoff {
		reply.Buttons = [][]Button{row(Button{Text: "☎️ Позвать менеджера", Data: CallbackRequestManager})}
	}
	return []Reply{reply}, nil
}

func (h *Handler) callManager(ctx context.Context, profile *store.Profile) ([]Reply, error) {
	h.notifyAdmins(ctx, fmt.Sprintf("☎️ Пользователь @%s (%d) просит связаться с менеджером.",
		profile.Username, profile.TelegramID))
	return []Reply{textReply(textManagerCalled)}, nil
}

// courseFocus narrows knowledge-base answers to the child's age group.
func (h *Handler) courseFocus(ctx context.Context, profile *store.Profile) string {
	deps, err := h.d.Dependents.ByProfile(ctx, profile.ID)
	if err != nil || len(deps) == 0 {
		return rag.FocusDefault
	}
	switch age := deps[0].Age; {
	case age >= 9 && age <= 13:
		return rag.FocusCourseJunior
	case age >= 14 && age <= 17:
		return rag.FocusCourseSenior
	}
	return rag.FocusDefault
}

func (h *Handler) lastAssistantMessage(ctx context.Context, profileID uuid.UUID) string {
	history, err := h.d.History.Recent(ctx, profileID)
	if err != nil {
		return ""
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

func (h *Handler) logTurn(ctx context.Context, profileID uuid.UUID, role, message, state string) {
	if message == "" {
		return
	}
	if err := h.d.History.Append(ctx, profileID, role, message, state, ""); err != nil {
		h.logger.Warn("dialog history append failed", "error", err)
	}
}

func (h *Handler) notifyAdmins(ctx context.Context, text string) {
	if h.d.Admins == nil {
		return
	}
	if err := h.d.Admins.NotifyAdmins(ctx, text); err != nil {
		h.logger.Warn("admin notification failed", "error", err)
	}
}

func (h *Handler) setState(ctx context.Context, profileID uuid.UUID, state string, payload Payload) error {
	raw, err := payload.Marshal()
	if err != nil {
		return err
	}
	if err := h.d.States.Set(ctx, profileID, state, raw); err != nil {
		return fmt.Errorf("conversation: save state: %w", err)
	}
	return nil
}

func (h *Handler) clearState(ctx context.Context, profileID uuid.UUID) {
	if err := h.d.States.Clear(ctx, profileID); err != nil {
		h.logger.Warn("state clear failed", "profile_id", profileID, "error", err)
	}
}
