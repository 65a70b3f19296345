package intent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclass-ai/schoolbot/internal/llm"
)

const testKeywords = `
enroll_request:
  keywords:
    - "записаться"
    - "хочу на пробное"
  callback_keys:
    - "enroll"
pricing:
  keywords:
    - "сколько стоит"
    - "цена"
  template:
    greeting:
      - "Здравствуйте, {parent_name}!"
    body: "Пробное занятие бесплатное."
    follow_up:
      - "Записать вас?"
farewell:
  keywords:
    - "до свидания"
  template:
    variants:
      - "До встречи!"
      - "Всего доброго!"
`

func writeKeywords(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeKeywords(t, testKeywords))
	require.NoError(t, err)

	assert.Equal(t, []string{"enroll_request", "pricing", "farewell"}, cfg.Tags())

	tpl, ok := cfg.TemplateFor("pricing")
	require.True(t, ok)
	assert.Equal(t, "Пробное занятие бесплатное.", tpl.Body)

	_, ok = cfg.TemplateFor("enroll_request")
	assert.False(t, ok, "action intent has no template")
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no triggers", "broken:\n  template:\n    body: \"x\"\n"},
		{"empty template", "broken:\n  keywords: [\"a\"]\n  template: {}\n"},
		{"not a mapping", "- a\n- b\n"},
		{"empty file", "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeKeywords(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// fakeEmbedder returns canned unit vectors per known phrase and a default
// vector for everything else.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func newTestRecognizer(t *testing.T, embedder llm.Embedder) *Recognizer {
	t.Helper()
	cfg, err := LoadConfig(writeKeywords(t, testKeywords))
	require.NoError(t, err)
	rec, err := NewRecognizer(context.Background(), cfg, embedder, 0.75, nil)
	require.NoError(t, err)
	return rec
}

func TestRecognizeExactTemplateKey(t *testing.T) {
	rec := newTestRecognizer(t, nil)
	assert.Equal(t, "pricing", rec.Recognize(context.Background(), "pricing"))
}

func TestRecognizeByRule(t *testing.T) {
	rec := newTestRecognizer(t, nil)

	tests := []struct {
		query string
		want  string
	}{
		{"Хочу ЗАПИСАТЬСЯ на занятие", "enroll_request"},
		{"enroll", "enroll_request"},
		{"а сколько стоит урок?", "pricing"},
		{"ну ладно, до свидания", "farewell"},
		{"какая погода", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rec.Recognize(context.Background(), tt.query), "query %q", tt.query)
	}
}

func TestRecognizeSemanticFallback(t *testing.T) {
	vectors := map[string][]float32{
		"записаться":      {1, 0, 0},
		"хочу на пробное": {0.9, 0.1, 0},
		"сколько стоит":   {0, 1, 0},
		"цена":            {0.1, 0.9, 0},
		"до свидания":     {0.5, 0.5, 0},
		"почем занятия":   {0.05, 0.95, 0},
		"выращивать розы": {0, 0, 1},
	}
	embedder := &fakeEmbedder{vectors: vectors}
	rec := newTestRecognizer(t, embedder)

	assert.Equal(t, "pricing", rec.Recognize(context.Background(), "почем занятия"))
	assert.Equal(t, "", rec.Recognize(context.Background(), "выращивать розы"),
		"off-topic query must not meet the threshold")
}

func TestRecognizeSemanticEmbedFailure(t *testing.T) {
	// Phrase embedding succeeds at construction, query embedding then fails:
	// the recognizer degrades to rule-only matching.
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}
	rec := newTestRecognizer(t, embedder)
	embedder.err = errors.New("embedding service down")

	assert.Equal(t, "pricing", rec.Recognize(context.Background(), "цена"))
	assert.Equal(t, "", rec.Recognize(context.Background(), "что-то невнятное"))
}

func TestNewRecognizerEmbedError(t *testing.T) {
	cfg, err := LoadConfig(writeKeywords(t, testKeywords))
	require.NoError(t, err)

	_, err = NewRecognizer(context.Background(), cfg, &fakeEmbedder{err: errors.New("boom")}, 0.75, nil)
	assert.Error(t, err)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 3}), 1e-6)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}), "mismatched lengths")
	assert.Zero(t, Cosine(nil, nil))
}
