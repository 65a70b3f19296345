package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

const correctorPrompt = "Ты — редактор-корректор. Исправь орфографические и грамматические ошибки в предложении, " +
	"полностью сохранив его первоначальный смысл и стиль. Если ошибок нет, верни исходное предложение без изменений.\n" +
	"Предложение: '%s'"

// Corrector fixes spelling in a user query before retrieval. Any failure
// returns the query unchanged: correction is an optimization, never a gate.
type Corrector struct {
	client Client
	logger *logging.Logger
}

func NewCorrector(client Client, logger *logging.Logger) *Corrector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Corrector{client: client, logger: logger}
}

// Correct returns the corrected query, or the original on any error.
func (c *Corrector) Correct(ctx context.Context, question string) string {
	if c.client == nil || strings.TrimSpace(question) == "" {
		return question
	}

	resp, err := c.client.Complete(ctx, Request{
		Messages:  []Message{{Role: RoleUser, Content: fmt.Sprintf(correctorPrompt, question)}},
		MaxTokens: 150,
	})
	if err != nil {
		c.logger.Warn("query correction failed", "error", err)
		return question
	}

	corrected := strings.TrimSpace(resp.Text)
	if corrected == "" {
		return question
	}
	if corrected != question {
		c.logger.Info("user query corrected", "from", question, "to", corrected)
	}
	return corrected
}
