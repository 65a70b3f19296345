package calendar

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

func TestParseEventTimeDateTime(t *testing.T) {
	got, err := parseEventTime(&gcal.EventDateTime{DateTime: "2026-09-02T10:00:00+03:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.September, 2, 7, 0, 0, 0, time.UTC), got)
}

func TestParseEventTimeAllDay(t *testing.T) {
	got, err := parseEventTime(&gcal.EventDateTime{Date: "2026-09-02"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.September, 2, 0, 0, 0, 0, time.UTC), got)
}

func TestParseEventTimeMissing(t *testing.T) {
	_, err := parseEventTime(nil)
	assert.Error(t, err)

	_, err = parseEventTime(&gcal.EventDateTime{})
	assert.Error(t, err)
}

func TestGone(t *testing.T) {
	assert.True(t, gone(&googleapi.Error{Code: 404}))
	assert.True(t, gone(&googleapi.Error{Code: 410}))
	assert.True(t, gone(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 404})))
	assert.False(t, gone(&googleapi.Error{Code: 500}))
	assert.False(t, gone(errors.New("network down")))
}
