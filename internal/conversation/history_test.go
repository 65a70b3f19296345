package conversation

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/internal/store"
)

type recordingDialog struct {
	turns []store.DialogTurn
	reads int
}

func (d *recordingDialog) Append(ctx context.Context, turn store.DialogTurn) error {
	d.turns = append(d.turns, turn)
	return nil
}

func (d *recordingDialog) RecentTurns(ctx context.Context, profileID uuid.UUID, limit int) ([]store.DialogTurn, error) {
	d.reads++
	if len(d.turns) > limit {
		return d.turns[len(d.turns)-limit:], nil
	}
	return d.turns, nil
}

func newTestHistory(t *testing.T) (*History, *recordingDialog) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	dialog := &recordingDialog{}
	return NewHistory(dialog, client, testLogger()), dialog
}

func TestHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t)
	profileID := uuid.New()

	require.NoError(t, h.Append(ctx, profileID, llm.RoleUser, "привет", "", ""))
	require.NoError(t, h.Append(ctx, profileID, llm.RoleAssistant, "здравствуйте!", "", ""))

	msgs, err := h.Recent(ctx, profileID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "привет"}, msgs[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "здравствуйте!"}, msgs[1])
}

func TestHistoryServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	h, dialog := newTestHistory(t)
	profileID := uuid.New()

	require.NoError(t, h.Append(ctx, profileID, llm.RoleUser, "привет", "", ""))

	_, err := h.Recent(ctx, profileID)
	require.NoError(t, err)
	_, err = h.Recent(ctx, profileID)
	require.NoError(t, err)

	assert.Equal(t, 1, dialog.reads)
}

func TestHistoryAppendInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	h, dialog := newTestHistory(t)
	profileID := uuid.New()

	require.NoError(t, h.Append(ctx, profileID, llm.RoleUser, "привет", "", ""))
	_, err := h.Recent(ctx, profileID)
	require.NoError(t, err)

	require.NoError(t, h.Append(ctx, profileID, llm.RoleAssistant, "здравствуйте!", "", ""))

	msgs, err := h.Recent(ctx, profileID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, 2, dialog.reads)
}

func TestHistoryWorksWithoutCache(t *testing.T) {
	ctx := context.Background()
	dialog := &recordingDialog{}
	h := NewHistory(dialog, nil, testLogger())
	profileID := uuid.New()

	require.NoError(t, h.Append(ctx, profileID, llm.RoleUser, "привет", "", ""))
	msgs, err := h.Recent(ctx, profileID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHistorySurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	dialog := &recordingDialog{}
	h := NewHistory(dialog, client, testLogger())
	profileID := uuid.New()

	require.NoError(t, h.Append(ctx, profileID, llm.RoleUser, "привет", "", ""))
	mr.Close()

	msgs, err := h.Recent(ctx, profileID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
