package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/codeclass-ai/schoolbot/internal/booking"
	"github.com/codeclass-ai/schoolbot/internal/retry"
	"github.com/codeclass-ai/schoolbot/internal/schedule"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// taggedQuery matches the summary the booking coordinator writes, so listing
// returns only bot-created events.
const taggedQuery = "Пробное занятие"

// Client wraps the Google Calendar API behind the free/busy and booking
// surfaces. All times cross the wire in UTC.
type Client struct {
	svc        *gcal.Service
	calendarID string
	retry      retry.Policy
	logger     *logging.Logger
}

// New builds a client authenticated with a service-account key file.
func New(ctx context.Context, credentialsFile, calendarID string, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar: build service: %w", err)
	}
	return &Client{
		svc:        svc,
		calendarID: calendarID,
		retry:      retry.Default,
		logger:     logger,
	}, nil
}

// BusyIntervals lists every event between start and end as a busy interval.
// All-day events block the whole day.
func (c *Client) BusyIntervals(ctx context.Context, start, end time.Time) ([]schedule.Interval, error) {
	var events *gcal.Events
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		events, callErr = c.svc.Events.List(c.calendarID).
			TimeMin(start.UTC().Format(time.RFC3339)).
			TimeMax(end.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}

	intervals := make([]schedule.Interval, 0, len(events.Items))
	for _, item := range events.Items {
		from, to, err := eventTimes(item)
		if err != nil {
			c.logger.Warn("skipping event with unparsable time", "event_id", item.Id, "error", err)
			continue
		}
		intervals = append(intervals, schedule.Interval{Start: from, End: to})
	}
	return intervals, nil
}

// CreateEvent inserts a calendar event and returns its reference.
func (c *Client) CreateEvent(ctx context.Context, req booking.EventRequest) (*booking.Event, error) {
	body := &gcal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &gcal.EventDateTime{DateTime: req.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: req.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}

	var created *gcal.Event
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		created, callErr = c.svc.Events.Insert(c.calendarID, body).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: insert event: %w", err)
	}

	c.logger.Info("calendar event created", "event_id", created.Id)
	return &booking.Event{
		ID:          created.Id,
		Summary:     created.Summary,
		Description: created.Description,
		Start:       req.Start.UTC(),
		End:         req.End.UTC(),
		Link:        created.HtmlLink,
	}, nil
}

// DeleteEvent removes an event. An already-deleted event is not an error.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	})
	if err != nil {
		if gone(err) {
			c.logger.Warn("event already deleted", "event_id", eventID)
			return nil
		}
		return fmt.Errorf("calendar: delete event %s: %w", eventID, err)
	}
	return nil
}

// ListTaggedEvents returns the bot-created events in the window.
func (c *Client) ListTaggedEvents(ctx context.Context, from, to time.Time) ([]booking.Event, error) {
	var events *gcal.Events
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		events, callErr = c.svc.Events.List(c.calendarID).
			TimeMin(from.UTC().Format(time.RFC3339)).
			TimeMax(to.UTC().Format(time.RFC3339)).
			Q(taggedQuery).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx).
			Do()
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: list tagged events: %w", err)
	}

	out := make([]booking.Event, 0, len(events.Items))
	for _, item := range events.Items {
		start, end, err := eventTimes(item)
		if err != nil {
			c.logger.Warn("skipping event with unparsable time", "event_id", item.Id, "error", err)
			continue
		}
		out = append(out, booking.Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Start:       start,
			End:         end,
			Link:        item.HtmlLink,
		})
	}
	return out, nil
}

func eventTimes(item *gcal.Event) (time.Time, time.Time, error) {
	start, err := parseEventTime(item.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseEventTime(item.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseEventTime(edt *gcal.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("calendar: event time missing")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("calendar: parse datetime %q: %w", edt.DateTime, err)
		}
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", edt.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: parse date %q: %w", edt.Date, err)
	}
	return t.UTC(), nil
}

func gone(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
}
