package schedule

import (
	"context"
	"time"

	"github.com/codeclass-ai/schoolbot/internal/retry"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// FreeBusyProvider reports busy intervals for one local calendar day.
type FreeBusyProvider interface {
	BusyIntervals(ctx context.Context, dayStart, dayEnd time.Time) ([]Interval, error)
}

// Config bounds the scan window.
type Config struct {
	WorkStartHour int
	WorkEndHour   int
	SlotDuration  time.Duration
	HorizonDays   int
	SkipToday     bool
}

// Engine computes free lesson slots over a rolling horizon. Candidate starts
// step at 30-minute granularity inside working hours; a day whose free/busy
// lookup keeps failing after retries is skipped rather than aborting the scan.
type Engine struct {
	provider FreeBusyProvider
	cfg      Config
	retry    retry.Policy
	logger   *logging.Logger
}

func NewEngine(provider FreeBusyProvider, cfg Config, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		provider: provider,
		cfg:      cfg,
		retry:    retry.Default,
		logger:   logger,
	}
}

const scanStep = 30 * time.Minute

// FreeSlots returns available, non-overlapping slots from now until the
// horizon, in chronological order. Slots that have already started are
// excluded; with SkipToday the scan begins tomorrow.
func (e *Engine) FreeSlots(ctx context.Context, now time.Time) ([]Slot, error) {
	firstDay := 0
	if e.cfg.SkipToday {
		firstDay = 1
	}

	var slots []Slot
	for day := firstDay; day < firstDay+e.cfg.HorizonDays; day++ {
		date := now.AddDate(0, 0, day)
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), e.cfg.WorkStartHour, 0, 0, 0, date.Location())
		dayEnd := time.Date(date.Year(), date.Month(), date.Day(), e.cfg.WorkEndHour, 0, 0, 0, date.Location())

		var busy []Interval
		err := e.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			busy, err = e.provider.BusyIntervals(ctx, dayStart, dayEnd)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn("skipping day after repeated free/busy failures",
				"date", dayStart.Format("2006-01-02"), "error", err)
			continue
		}

		// Candidate starts walk at the scan step; an accepted slot moves
		// the cursor past its own end so offered slots never overlap.
		start := dayStart
		for !start.Add(e.cfg.SlotDuration).After(dayEnd) {
			candidate := Slot{Start: start, End: start.Add(e.cfg.SlotDuration)}
			if start.After(now) && freeAgainst(candidate, busy) {
				slots = append(slots, candidate)
				start = candidate.End
				continue
			}
			start = start.Add(scanStep)
		}
	}
	return slots, nil
}

// IsFree re-verifies a single slot against the live calendar.
func (e *Engine) IsFree(ctx context.Context, slot Slot) (bool, error) {
	var busy []Interval
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		busy, err = e.provider.BusyIntervals(ctx, slot.Start, slot.End)
		return err
	})
	if err != nil {
		return false, err
	}
	return freeAgainst(slot, busy), nil
}

func freeAgainst(s Slot, busy []Interval) bool {
	for _, b := range busy {
		if s.Overlaps(b) {
			return false
		}
	}
	return true
}
