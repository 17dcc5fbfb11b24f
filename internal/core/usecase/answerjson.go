package usecase

import (
	"encoding/json"
	"strings"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// parseAnswerJSON decodes the model's answer object, tolerating code-fence
// wrappers. On any parse failure it falls back to the documented shape
// with the raw text as the answer and the given pages attached, so the
// caller's JSON contract never breaks.
func parseAnswerJSON(raw string, fallbackPages []int) domain.Answer {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var answer domain.Answer
	if err := json.Unmarshal([]byte(cleaned), &answer); err != nil {
		return domain.Answer{
			Answer:        raw,
			PageNumbers:   normalizePages(fallbackPages),
			FigureNumbers: []any{},
		}
	}
	if answer.PageNumbers == nil {
		answer.PageNumbers = []int{}
	}
	if answer.FigureNumbers == nil {
		answer.FigureNumbers = []any{}
	}
	return answer
}

func normalizePages(pages []int) []int {
	if pages == nil {
		return []int{}
	}
	return pages
}

// errorAnswer keeps user-visible failures inside the answer object rather
// than surfacing an exception to the caller.
func errorAnswer(msg string) domain.Answer {
	return domain.Answer{
		Answer:        msg,
		PageNumbers:   []int{},
		FigureNumbers: []any{},
	}
}
