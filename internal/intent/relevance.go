package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

const classifierPrompt = `Отвечай ТОЛЬКО "да" или "нет".
Твоя задача - определить, относится ли запрос пользователя к деятельности онлайн-школы программирования.

ЗАПРОСЫ, НА КОТОРЫЕ ОТВЕТ "ДА":
- Приветствия и прощания (например, "Здравствуйте", "Привет", "Добрый день", "До свидания").
- Любые вопросы о курсах, ценах, расписании, пробных уроках.
- Прямые команды: "Записаться на урок", "Отменить запись", "Перенести встречу".
- Просьба позвать человека или менеджера.
- Нечеткие запросы, которые могут подразумевать интерес: "хочу попробовать", "как у вас тут".

ЗАПРОСЫ, НА КОТОРЫЕ ОТВЕТ "НЕТ":
- Случайный набор букв, бессмыслица.
- Вопросы на отвлеченные темы: "какая погода", "расскажи анекдот", "кто ты".
- Оскорбления или грубость.

ПРИМЕРЫ:
Пользователь: "Отменить запись"
Твой ответ: да
---
Пользователь: "ghbdtn"
Твой ответ: нет
---
Пользователь: "Хочу перенести пробный урок"
Твой ответ: да`

// RelevanceClassifier judges whether a free-text message is on-topic for the
// school. It fails open: any transport or model failure counts as relevant,
// so infrastructure trouble never silently mutes a user.
type RelevanceClassifier struct {
	client llm.Client
	logger *logging.Logger
}

func NewRelevanceClassifier(client llm.Client, logger *logging.Logger) *RelevanceClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &RelevanceClassifier{client: client, logger: logger}
}

// IsRelevant classifies one message given the assistant's previous turn.
func (c *RelevanceClassifier) IsRelevant(ctx context.Context, question, lastAssistant string) bool {
	if c.client == nil {
		c.logger.Warn("relevance check skipped, no model configured")
		return true
	}

	prompt := fmt.Sprintf("%s\n\n--- ДИАЛОГ ДЛЯ АНАЛИЗА ---\n"+
		"Последняя фраза ассистента: '%s'\n"+
		"Новый запрос пользователя: '%s'\n"+
		"--- КОНЕЦ ДИАЛОГА ---\n\n"+
		"Вопрос: Является ли новый запрос пользователя релевантным тематике школы? Ответь 'да' или 'нет'.",
		classifierPrompt, lastAssistant, question)

	resp, err := c.client.Complete(ctx, llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: 3,
	})
	if err != nil {
		c.logger.Warn("relevance check failed, allowing message", "error", err)
		return true
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Text))
	c.logger.Info("relevance classifier answered", "answer", answer, "query", question)
	return strings.Contains(answer, "да")
}

// IsRelevantWithLayoutCorrection retries an irrelevant verdict once through
// the keyboard-layout fix when the text looks like a Latin-layout mistype.
func (c *RelevanceClassifier) IsRelevantWithLayoutCorrection(ctx context.Context, question, lastAssistant string) bool {
	if c.IsRelevant(ctx, question, lastAssistant) {
		return true
	}
	if !NeedsLayoutCorrection(question) {
		return false
	}
	fixed := ToRussianLayout(question)
	if fixed == question {
		return false
	}
	c.logger.Info("retrying relevance with layout fix", "from", question, "to", fixed)
	return c.IsRelevant(ctx, fixed, lastAssistant)
}
