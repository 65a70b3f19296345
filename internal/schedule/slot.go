package schedule

import (
	"fmt"
	"time"
)

// Slot is a bookable interval. Times are naive wall-clock values in the
// school's local timezone; conversion to UTC happens at the calendar boundary.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Interval is a busy period reported by the calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the slot intersects the busy interval.
// Touching endpoints do not overlap.
func (s Slot) Overlaps(b Interval) bool {
	return s.Start.Before(b.End) && s.End.After(b.Start)
}

// Key is a stable identifier for callback payloads, e.g. "2026-09-03T15:00".
func (s Slot) Key() string {
	return s.Start.Format("2006-01-02T15:04")
}

// ParseSlotKey reconstructs a slot from its key given the lesson duration.
func ParseSlotKey(key string, duration time.Duration) (Slot, error) {
	start, err := time.Parse("2006-01-02T15:04", key)
	if err != nil {
		return Slot{}, fmt.Errorf("schedule: parse slot key %q: %w", key, err)
	}
	return Slot{Start: start, End: start.Add(duration)}, nil
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Понедельник",
	time.Tuesday:   "Вторник",
	time.Wednesday: "Среда",
	time.Thursday:  "Четверг",
	time.Friday:    "Пятница",
	time.Saturday:  "Суббота",
	time.Sunday:    "Воскресенье",
}

// Label renders a human label relative to now, e.g. "Сегодня, 15:00" or
// "Среда (03.09), 15:00".
func (s Slot) Label(now time.Time) string {
	y1, m1, d1 := now.Date()
	y2, m2, d2 := s.Start.Date()
	sameDay := y1 == y2 && m1 == m2 && d1 == d2

	tomorrow := now.AddDate(0, 0, 1)
	y3, m3, d3 := tomorrow.Date()
	nextDay := y2 == y3 && m2 == m3 && d2 == d3

	clock := s.Start.Format("15:04")
	switch {
	case sameDay:
		return "Сегодня, " + clock
	case nextDay:
		return "Завтра, " + clock
	default:
		return fmt.Sprintf("%s (%s), %s", weekdayNames[s.Start.Weekday()], s.Start.Format("02.01"), clock)
	}
}
