package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/codeclass-ai/schoolbot/internal/observability/metrics"
	"github.com/codeclass-ai/schoolbot/internal/store"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// Reminder windows relative to the lesson start. A sweep that runs every
// minute will see each lesson inside exactly one pass per window; the sent
// flag makes repeated passes idempotent.
const (
	window24hFrom = 23*time.Hour + 50*time.Minute
	window24hTo   = 24*time.Hour + 10*time.Minute
	window1hFrom  = 50 * time.Minute
	window1hTo    = time.Hour + 10*time.Minute

	completionGrace = time.Hour
)

// Phrases interpolated into reminder texts.
const (
	WhenTomorrow = "завтра"
	WhenInAnHour = "через час"
)

// Lessons is the store surface the sweeps need.
type Lessons interface {
	PlannedInWindow(ctx context.Context, from, to time.Time, kind store.ReminderKind) ([]store.Lesson, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, kind store.ReminderKind) error
	CompleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier delivers a reminder to the lesson's parent. The transport layer
// resolves the profile and renders the message.
type Notifier interface {
	SendLessonReminder(ctx context.Context, lesson store.Lesson, when string) error
}

// Config carries the cron specs for both sweeps.
type Config struct {
	ReminderSpec   string
	CompletionSpec string
}

// Scheduler runs the reminder and completion sweeps on cron schedules.
type Scheduler struct {
	lessons  Lessons
	notifier Notifier
	cfg      Config
	metrics  *metrics.BotMetrics
	logger   *logging.Logger
	cron     *cron.Cron
}

func New(lessons Lessons, notifier Notifier, cfg Config, m *metrics.BotMetrics, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		lessons:  lessons,
		notifier: notifier,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// Start registers both sweeps and launches the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.ReminderSpec, func() {
		if err := s.RunReminderSweep(ctx, time.Now().UTC()); err != nil {
			s.logger.Error("reminder sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduler: register reminder sweep: %w", err)
	}
	if _, err := c.AddFunc(s.cfg.CompletionSpec, func() {
		if err := s.RunCompletionSweep(ctx, time.Now().UTC()); err != nil {
			s.logger.Error("completion sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduler: register completion sweep: %w", err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("scheduler started",
		"reminder_spec", s.cfg.ReminderSpec, "completion_spec", s.cfg.CompletionSpec)
	return nil
}

// Stop halts the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunReminderSweep sends 24-hour and 1-hour reminders for lessons whose
// start falls inside the respective window. Sends run concurrently; a flag
// is only set after its send succeeded, so failures retry on the next pass.
func (s *Scheduler) RunReminderSweep(ctx context.Context, now time.Time) error {
	if err := s.sweepWindow(ctx, now, window24hFrom, window24hTo, store.Reminder24h, WhenTomorrow); err != nil {
		return err
	}
	return s.sweepWindow(ctx, now, window1hFrom, window1hTo, store.Reminder1h, WhenInAnHour)
}

func (s *Scheduler) sweepWindow(ctx context.Context, now time.Time, from, to time.Duration, kind store.ReminderKind, when string) error {
	lessons, err := s.lessons.PlannedInWindow(ctx, now.Add(from), now.Add(to), kind)
	if err != nil {
		return fmt.Errorf("scheduler: list lessons for %s window: %w", when, err)
	}
	if len(lessons) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, lesson := range lessons {
		wg.Add(1)
		go func(lesson store.Lesson) {
			defer wg.Done()
			if err := s.notifier.SendLessonReminder(ctx, lesson, when); err != nil {
				s.logger.Error("reminder send failed",
					"lesson_id", lesson.ID, "window", when, "error", err)
				s.metrics.ObserveReminder(string(kind), "failed")
				return
			}
			if err := s.lessons.MarkReminderSent(ctx, lesson.ID, kind); err != nil {
				s.logger.Error("reminder flag update failed", "lesson_id", lesson.ID, "error", err)
				return
			}
			s.metrics.ObserveReminder(string(kind), "sent")
		}(lesson)
	}
	wg.Wait()
	return nil
}

// RunCompletionSweep marks planned lessons whose start is more than an hour
// in the past as completed.
func (s *Scheduler) RunCompletionSweep(ctx context.Context, now time.Time) error {
	n, err := s.lessons.CompleteExpired(ctx, now.Add(-completionGrace))
	if err != nil {
		return fmt.Errorf("scheduler: completion sweep: %w", err)
	}
	if n > 0 {
		s.logger.Info("lessons marked completed", "count", n)
	}
	return nil
}
