package rag

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

// Control commands the model may emit instead of prose. The conversation
// layer dispatches them into the matching flow.
const (
	StartEnrollmentTag = "[START_ENROLLMENT]"
	CancelBookingTag   = "[CANCEL_BOOKING]"
)

// Course focus keys narrowing the model's answers to one age group.
const (
	FocusDefault      = "default"
	FocusCourseJunior = "course_junior"
	FocusCourseSenior = "course_senior"
)

const fallbackSystemPrompt = "Ты — полезный ассистент."

const commandInstructions = `--- СПЕЦИАЛЬНЫЕ КОМАНДЫ ---
Если пользователь явно выражает желание записаться на пробный урок,
начать запись, выбрать время или что-то подобное,
твой ЕДИНСТВЕННЫЙ ответ должен быть специальной командой: [START_ENROLLMENT].
Если пользователь явно выражает желание отменить существующую запись, пробный
урок или встречу, ответь только одной командой: [CANCEL_BOOKING].
Не пиши ничего, кроме этих команд. Во всех остальных случаях веди диалог как обычно.`

const topK = 3

// LoadSystemPrompt reads the assistant persona from disk and appends the
// control-command instructions. A missing file degrades to a generic persona.
func LoadSystemPrompt(path string, logger *logging.Logger) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Error("system prompt file unavailable, using fallback", "path", path, "error", err)
		return fallbackSystemPrompt + "\n\n" + commandInstructions
	}
	return strings.TrimSpace(string(raw)) + "\n\n" + commandInstructions
}

// Responder answers free-text questions grounded on retrieved knowledge.
type Responder struct {
	client       llm.Client
	store        *Store
	systemPrompt string
	logger       *logging.Logger
}

func NewResponder(client llm.Client, store *Store, systemPrompt string, logger *logging.Logger) *Responder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{client: client, store: store, systemPrompt: systemPrompt, logger: logger}
}

// Answer retrieves context for the question, builds the grounded prompt and
// queries the model. The focus key narrows answers to one course when the
// dependent's age group is known.
func (r *Responder) Answer(ctx context.Context, question string, history []llm.Message, focus string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("rag: no model configured")
	}

	contextBlock := "Информация по данному вопросу в базе знаний отсутствует."
	if r.store != nil && r.store.Len() > 0 {
		docs, err := r.store.Query(ctx, question, topK)
		if err != nil {
			r.logger.Warn("knowledge retrieval failed, answering without context", "error", err)
		} else if len(docs) > 0 {
			parts := make([]string, len(docs))
			for i, d := range docs {
				parts[i] = d.Content
			}
			contextBlock = strings.Join(parts, "\n---\n")
		}
	}

	system := r.buildSystemPrompt(contextBlock, focus)
	messages := append(append([]llm.Message{}, history...), llm.Message{Role: llm.RoleUser, Content: question})

	resp, err := r.client.Complete(ctx, llm.Request{
		System:   system,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("rag: answer question: %w", err)
	}
	if resp.Usage.TotalTokens > 0 {
		r.logger.Info("grounded answer produced",
			"prompt_tokens", resp.Usage.InputTokens,
			"completion_tokens", resp.Usage.OutputTokens,
			"focus", focus)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (r *Responder) buildSystemPrompt(contextBlock, focus string) string {
	var b strings.Builder
	b.WriteString(r.systemPrompt)
	b.WriteString("\n\n")
	switch focus {
	case FocusCourseJunior:
		b.WriteString("ВАЖНОЕ УКАЗАНИЕ: Клиент интересуется курсом для младшей группы (9-13 лет). " +
			"Сосредоточь все ответы ИСКЛЮЧИТЕЛЬНО на этом курсе. Не упоминай другие курсы.\n\n")
	case FocusCourseSenior:
		b.WriteString("ВАЖНОЕ УКАЗАНИЕ: Клиент интересуется курсом для старшей группы (14-17 лет). " +
			"Сосредоточь все ответы ИСКЛЮЧИТЕЛЬНО на этом курсе. Не упоминай другие курсы.\n\n")
	}
	b.WriteString("Опираясь на предоставленный ниже контекст, ответь на следующий вопрос пользователя.\n")
	b.WriteString("--- КОНТЕКСТ ИЗ БАЗЫ ЗНАНИЙ ---\n")
	b.WriteString(contextBlock)
	b.WriteString("\n--- КОНЕЦ КОНТЕКСТА ---")
	return b.String()
}

// Command extracts a control command from a model reply, if present.
func Command(reply string) (string, bool) {
	switch {
	case strings.Contains(reply, StartEnrollmentTag):
		return StartEnrollmentTag, true
	case strings.Contains(reply, CancelBookingTag):
		return CancelBookingTag, true
	}
	return "", false
}
