package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.New("error", "text")
}

// hashEmbedder produces deterministic vectors so similar strings only match
// when they share the injected keyword.
type hashEmbedder struct {
	err error
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 4)
		if strings.Contains(text, "цена") || strings.Contains(text, "стоимость") {
			v[0] = 1
		}
		if strings.Contains(text, "расписание") {
			v[1] = 1
		}
		if strings.Contains(text, "преподаватель") {
			v[2] = 1
		}
		v[3] = 0.1
		out[i] = v
	}
	return out, nil
}

func TestStoreQueryRanksBySimilarity(t *testing.T) {
	store := NewStore(&hashEmbedder{})
	err := store.AddDocuments(context.Background(), []Document{
		{Source: "pricing.txt", Content: "Наша цена и стоимость курсов."},
		{Source: "schedule.txt", Content: "Актуальное расписание занятий."},
		{Source: "teachers.txt", Content: "Каждый преподаватель сертифицирован."},
	})
	require.NoError(t, err)
	require.Equal(t, 3, store.Len())

	docs, err := store.Query(context.Background(), "какая у вас цена", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "pricing.txt", docs[0].Source)
}

func TestStoreQueryTopKBounds(t *testing.T) {
	store := NewStore(&hashEmbedder{})
	require.NoError(t, store.AddDocuments(context.Background(), []Document{
		{Source: "a.txt", Content: "цена"},
	}))

	docs, err := store.Query(context.Background(), "цена", 5)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = store.Query(context.Background(), "цена", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStoreEmbedFailure(t *testing.T) {
	store := NewStore(&hashEmbedder{err: errors.New("down")})
	err := store.AddDocuments(context.Background(), []Document{{Content: "x"}})
	assert.Error(t, err)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info.txt"), []byte("О школе.\n\nКурсы и цены."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "faq.md"), []byte("Вопросы и ответы."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.pdf"), []byte("binary"), 0o644))

	docs, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	sources := []string{docs[0].Source, docs[1].Source}
	assert.Contains(t, sources, "info.txt")
	assert.Contains(t, sources, "faq.md")
}

func TestLoadDirectoryMissing(t *testing.T) {
	docs, err := LoadDirectory(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSplitTextChunksLongInput(t *testing.T) {
	para := strings.Repeat("Это предложение о школе программирования. ", 12) // ~500 runes
	text := para + "\n\n" + para + "\n\n" + para

	chunks := splitText(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), chunkSize)
		assert.NotEmpty(t, c)
	}
}

func TestSplitTextShortInput(t *testing.T) {
	assert.Equal(t, []string{"короткий текст"}, splitText("  короткий текст\n"))
	assert.Nil(t, splitText("   "))
}

type scriptedClient struct {
	reply  string
	err    error
	lastIn llm.Request
}

func (s *scriptedClient) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.lastIn = req
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.reply}, nil
}

func TestResponderGroundsAnswerInContext(t *testing.T) {
	store := NewStore(&hashEmbedder{})
	require.NoError(t, store.AddDocuments(context.Background(), []Document{
		{Source: "pricing.txt", Content: "Пробное занятие бесплатное, цена курса 5000р."},
	}))

	client := &scriptedClient{reply: "Пробное занятие бесплатное."}
	r := NewResponder(client, store, "Ты — ассистент школы.", nil)

	answer, err := r.Answer(context.Background(), "какая цена", nil, FocusDefault)
	require.NoError(t, err)
	assert.Equal(t, "Пробное занятие бесплатное.", answer)

	assert.Contains(t, client.lastIn.System, "цена курса 5000р")
	assert.Contains(t, client.lastIn.System, "КОНТЕКСТ ИЗ БАЗЫ ЗНАНИЙ")
	require.NotEmpty(t, client.lastIn.Messages)
	assert.Equal(t, "какая цена", client.lastIn.Messages[len(client.lastIn.Messages)-1].Content)
}

func TestResponderCourseFocus(t *testing.T) {
	client := &scriptedClient{reply: "ok"}
	r := NewResponder(client, NewStore(&hashEmbedder{}), "Персона.", nil)

	_, err := r.Answer(context.Background(), "вопрос", nil, FocusCourseJunior)
	require.NoError(t, err)
	assert.Contains(t, client.lastIn.System, "младшей группы (9-13 лет)")

	_, err = r.Answer(context.Background(), "вопрос", nil, FocusCourseSenior)
	require.NoError(t, err)
	assert.Contains(t, client.lastIn.System, "старшей группы (14-17 лет)")
}

func TestResponderPropagatesModelError(t *testing.T) {
	r := NewResponder(&scriptedClient{err: errors.New("model down")}, nil, "p", nil)
	_, err := r.Answer(context.Background(), "вопрос", nil, FocusDefault)
	assert.Error(t, err)
}

func TestLoadSystemPromptAppendsCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("Ты — ассистент школы кода.\n"), 0o644))

	prompt := LoadSystemPrompt(path, testLogger())
	assert.True(t, strings.HasPrefix(prompt, "Ты — ассистент школы кода."))
	assert.Contains(t, prompt, StartEnrollmentTag)
	assert.Contains(t, prompt, CancelBookingTag)

	fallback := LoadSystemPrompt(filepath.Join(t.TempDir(), "absent.txt"), testLogger())
	assert.Contains(t, fallback, "полезный ассистент")
	assert.Contains(t, fallback, StartEnrollmentTag)
}

func TestCommand(t *testing.T) {
	cmd, ok := Command("  [START_ENROLLMENT]  ")
	assert.True(t, ok)
	assert.Equal(t, StartEnrollmentTag, cmd)

	cmd, ok = Command("[CANCEL_BOOKING]")
	assert.True(t, ok)
	assert.Equal(t, CancelBookingTag, cmd)

	_, ok = Command("Обычный ответ про курсы.")
	assert.False(t, ok)
}
