package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeclass-ai/schoolbot/internal/schedule"
	"github.com/codeclass-ai/schoolbot/internal/store"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// Ledger statuses written to the audit spreadsheet.
const (
	StatusCreated     = "Создана"
	StatusRescheduled = "Перенесена"
	StatusCancelled   = "Отменена"
)

// ReasonSlotUnavailable is returned when the re-verification before event
// creation finds the slot taken.
const ReasonSlotUnavailable = "slot unavailable"

// Event is a calendar event the coordinator created or listed.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Link        string
}

// EventRequest describes the event to create.
type EventRequest struct {
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
}

// Calendar is the remote calendar surface the coordinator needs.
type Calendar interface {
	BusyIntervals(ctx context.Context, start, end time.Time) ([]schedule.Interval, error)
	CreateEvent(ctx context.Context, req EventRequest) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListTaggedEvents(ctx context.Context, from, to time.Time) ([]Event, error)
}

// Ledger is the audit spreadsheet. Writes are best-effort post-commit
// hooks: their failure never changes a booking's reported outcome.
type Ledger interface {
	AppendBooking(ctx context.Context, rec LedgerRecord) error
	UpdateStatus(ctx context.Context, eventRef, status string) error
}

// LedgerRecord is one audit row.
type LedgerRecord struct {
	Start      time.Time
	End        time.Time
	ParentName string
	Username   string
	TelegramID int64
	Phone      string
	EventRef   string
	EventLink  string
	Status     string
}

// Lessons is the slice of the store the coordinator writes.
type Lessons interface {
	Create(ctx context.Context, l *store.Lesson) error
	CancelByEventRef(ctx context.Context, eventRef string) error
}

// Request describes one booking attempt.
type Request struct {
	Slot      schedule.Slot
	Profile   *store.Profile
	Dependent *store.Dependent

	// SupersedeEventRef, when set, is the event being rescheduled away from.
	SupersedeEventRef string

	CourseName string
	Notes      string
}

// Result is the outcome of a booking attempt. Success=false with a Reason
// is a normal business outcome, not an error.
type Result struct {
	Success  bool
	Reason   string
	EventRef string
	Link     string
	Lesson   *store.Lesson
}

// eventSummary tags every bot-created event so user-event listing can
// filter on it.
const eventSummary = "Пробное занятие"

const lookupHorizon = 30 * 24 * time.Hour

// Coordinator executes the booking transaction against the calendar, the
// database and the audit ledger.
type Coordinator struct {
	calendar Calendar
	ledger   Ledger
	lessons  Lessons
	tracer   trace.Tracer
	logger   *logging.Logger
}

func NewCoordinator(calendar Calendar, ledger Ledger, lessons Lessons, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		calendar: calendar,
		ledger:   ledger,
		lessons:  lessons,
		tracer:   otel.Tracer("booking"),
		logger:   logger,
	}
}

// Book creates a calendar event for the slot and records the lesson.
// The slot is re-verified against the live calendar immediately before the
// event is created; the window between check and create is a known race,
// mitigated but not eliminated. A superseded event is cancelled best-effort
// first so its interval does not shadow the new slot.
func (c *Coordinator) Book(ctx context.Context, req Request) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "booking.Book",
		trace.WithAttributes(
			attribute.Int64("telegram_id", req.Profile.TelegramID),
			attribute.String("slot_start", req.Slot.Start.Format(time.RFC3339)),
			attribute.Bool("reschedule", req.SupersedeEventRef != ""),
		))
	defer span.End()

	superseded := c.cancelSuperseded(ctx, req.SupersedeEventRef)

	free, err := c.slotFree(ctx, req.Slot)
	if err != nil {
		return nil, fmt.Errorf("booking: verify slot: %w", err)
	}
	if !free {
		span.SetAttributes(attribute.String("outcome", ReasonSlotUnavailable))
		return &Result{Success: false, Reason: ReasonSlotUnavailable}, nil
	}

	event, err := c.calendar.CreateEvent(ctx, EventRequest{
		Start:       req.Slot.Start,
		End:         req.Slot.End,
		Summary:     eventSummary,
		Description: buildDescription(req.Profile),
	})
	if err != nil {
		return nil, fmt.Errorf("booking: create event: %w", err)
	}
	span.SetAttributes(attribute.String("event_ref", event.ID))

	lesson := c.persistLesson(ctx, req, event.ID)
	c.appendLedger(ctx, req, event, superseded)

	return &Result{Success: true, EventRef: event.ID, Link: event.Link, Lesson: lesson}, nil
}

// Cancel deletes the event and propagates the cancellation to the ledger
// and the lesson record. Only the calendar delete is load-bearing.
func (c *Coordinator) Cancel(ctx context.Context, eventRef string) error {
	ctx, span := c.tracer.Start(ctx, "booking.Cancel",
		trace.WithAttributes(attribute.String("event_ref", eventRef)))
	defer span.End()

	if err := c.calendar.DeleteEvent(ctx, eventRef); err != nil {
		return fmt.Errorf("booking: delete event: %w", err)
	}

	if c.ledger != nil {
		if err := c.ledger.UpdateStatus(ctx, eventRef, StatusCancelled); err != nil {
			c.logger.Error("ledger status update failed", "event_ref", eventRef, "error", err)
		}
	}
	if err := c.lessons.CancelByEventRef(ctx, eventRef); err != nil {
		c.logger.Error("lesson cancel failed", "event_ref", eventRef, "error", err)
	}
	return nil
}

// UserEvents lists the profile's upcoming trial-lesson events, matched by
// the ownership lines embedded in each event description.
func (c *Coordinator) UserEvents(ctx context.Context, profile *store.Profile, now time.Time) ([]Event, error) {
	events, err := c.calendar.ListTaggedEvents(ctx, now, now.Add(lookupHorizon))
	if err != nil {
		return nil, fmt.Errorf("booking: list user events: %w", err)
	}

	idLine := fmt.Sprintf("User ID: %d", profile.TelegramID)
	userLine := ""
	if profile.Username != "" {
		userLine = "Telegram: @" + profile.Username
	}

	var out []Event
	for _, ev := range events {
		if strings.Contains(ev.Description, idLine) ||
			(userLine != "" && strings.Contains(ev.Description, userLine)) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (c *Coordinator) cancelSuperseded(ctx context.Context, eventRef string) string {
	if eventRef == "" {
		return ""
	}
	if err := c.calendar.DeleteEvent(ctx, eventRef); err != nil {
		c.logger.Warn("superseded event delete failed", "event_ref", eventRef, "error", err)
		return ""
	}
	if err := c.lessons.CancelByEventRef(ctx, eventRef); err != nil {
		c.logger.Warn("superseded lesson cancel failed", "event_ref", eventRef, "error", err)
	}
	c.logger.Info("superseded booking cancelled", "event_ref", eventRef)
	return eventRef
}

func (c *Coordinator) slotFree(ctx context.Context, slot schedule.Slot) (bool, error) {
	busy, err := c.calendar.BusyIntervals(ctx, slot.Start, slot.End)
	if err != nil {
		return false, err
	}
	for _, b := range busy {
		if slot.Overlaps(b) {
			return false, nil
		}
	}
	return true, nil
}

func (c *Coordinator) persistLesson(ctx context.Context, req Request, eventRef string) *store.Lesson {
	lesson := &store.Lesson{
		ProfileID:   req.Profile.ID,
		EventRef:    eventRef,
		ScheduledAt: req.Slot.Start.UTC(),
		Status:      store.LessonPlanned,
		CourseName:  req.CourseName,
		Notes:       req.Notes,
	}
	if req.Dependent != nil {
		lesson.DependentID = req.Dependent.ID
	}
	if err := c.lessons.Create(ctx, lesson); err != nil {
		c.logger.Error("lesson persist failed", "event_ref", eventRef, "error", err)
		return nil
	}
	return lesson
}

func (c *Coordinator) appendLedger(ctx context.Context, req Request, event *Event, superseded string) {
	if c.ledger == nil {
		return
	}
	status := StatusCreated
	if superseded != "" || req.SupersedeEventRef != "" {
		status = StatusRescheduled
	}
	rec := LedgerRecord{
		Start:      req.Slot.Start,
		End:        req.Slot.End,
		ParentName: req.Profile.FullName,
		Username:   req.Profile.Username,
		TelegramID: req.Profile.TelegramID,
		Phone:      req.Profile.Phone,
		EventRef:   event.ID,
		EventLink:  event.Link,
		Status:     status,
	}
	if err := c.ledger.AppendBooking(ctx, rec); err != nil {
		c.logger.Error("ledger append failed", "event_ref", event.ID, "error", err)
	}
}

func buildDescription(p *store.Profile) string {
	parts := []string{"Запись на пробное занятие"}
	if p.TelegramID != 0 {
		parts = append(parts, fmt.Sprintf("User ID: %d", p.TelegramID))
	}
	if p.FullName != "" {
		parts = append(parts, "Имя: "+p.FullName)
	}
	if p.Username != "" {
		parts = append(parts, "Telegram: @"+p.Username)
	}
	if p.Phone != "" {
		parts = append(parts, "Телефон: "+p.Phone)
	}
	return strings.Join(parts, "\n")
}
