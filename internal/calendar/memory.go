package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeclass-ai/schoolbot/internal/booking"
	"github.com/codeclass-ai/schoolbot/internal/schedule"
)

// Memory is an in-process calendar for running the bot without Google
// credentials. Events live only as long as the process.
type Memory struct {
	mu     sync.RWMutex
	events map[string]booking.Event
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string]booking.Event)}
}

func (m *Memory) BusyIntervals(ctx context.Context, start, end time.Time) ([]schedule.Interval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var busy []schedule.Interval
	for _, ev := range m.events {
		if ev.Start.Before(end) && ev.End.After(start) {
			busy = append(busy, schedule.Interval{Start: ev.Start, End: ev.End})
		}
	}
	return busy, nil
}

func (m *Memory) CreateEvent(ctx context.Context, req booking.EventRequest) (*booking.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := booking.Event{
		ID:          uuid.NewString(),
		Summary:     req.Summary,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
	}
	m.events[ev.ID] = ev
	return &ev, nil
}

func (m *Memory) DeleteEvent(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Deleting an unknown event is a no-op, same as the remote client
	// treating 404/410 as already gone.
	delete(m.events, eventID)
	return nil
}

func (m *Memory) ListTaggedEvents(ctx context.Context, from, to time.Time) ([]booking.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []booking.Event
	for _, ev := range m.events {
		if ev.Summary == taggedQuery && !ev.Start.Before(from) && ev.Start.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}
