package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/manualqa/manual-assistant/internal/core/ports"
)

// QueryExpander enriches a query with paraphrases and related keywords via
// the language model before vector search. Expansion is best effort: any
// failure falls back to the unexpanded query and never reaches the caller.
type QueryExpander struct {
	generator ports.TextGenerator
	enabled   bool
	timeout   time.Duration
}

func NewQueryExpander(generator ports.TextGenerator, enabled bool, timeout time.Duration) *QueryExpander {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QueryExpander{
		generator: generator,
		enabled:   enabled,
		timeout:   timeout,
	}
}

// Expand returns the original query followed by the model's expansion
// terms, or the original query alone when expansion is disabled or fails.
func (e *QueryExpander) Expand(ctx context.Context, query string) string {
	if !e.enabled || e.generator == nil {
		return query
	}

	expandCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	terms, err := e.generator.GenerateFromPrompt(expandCtx, buildExpansionPrompt(query))
	if err != nil {
		slog.Warn("query_expansion_failed", "error", err)
		return query
	}

	terms = strings.TrimSpace(terms)
	if terms == "" {
		return query
	}
	return query + " " + terms
}
