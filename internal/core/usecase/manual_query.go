package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/manualqa/manual-assistant/internal/core/domain"
	"github.com/manualqa/manual-assistant/internal/core/ports"
)

const noContextAnswer = "No relevant context found in the document."

// ManualQueryUseCase answers free-text questions about the manual:
// retrieve, assemble, prompt, parse. Upstream failures degrade to an
// answer object carrying the error text; only invalid input is returned
// as an error.
type ManualQueryUseCase struct {
	retrieval  *TextRetrieval
	assembler  *ContextAssembler
	generator  ports.TextGenerator
	sessions   ports.SessionStore
	genTimeout time.Duration
}

func NewManualQueryUseCase(
	retrieval *TextRetrieval,
	assembler *ContextAssembler,
	generator ports.TextGenerator,
	sessions ports.SessionStore,
	genTimeout time.Duration,
) *ManualQueryUseCase {
	if genTimeout <= 0 {
		genTimeout = 60 * time.Second
	}
	return &ManualQueryUseCase{
		retrieval:  retrieval,
		assembler:  assembler,
		generator:  generator,
		sessions:   sessions,
		genTimeout: genTimeout,
	}
}

func (uc *ManualQueryUseCase) Answer(ctx context.Context, sessionID, query string, topK int) (domain.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return domain.Answer{}, domain.WrapError(domain.ErrInvalidInput, "answer query", domain.ErrInvalidInput)
	}

	session := uc.loadSession(ctx, sessionID)

	chunks := uc.retrieval.Retrieve(ctx, query, topK)
	bundle := uc.assembler.Assemble(chunks, nil, nil)
	if bundle.Empty() {
		return errorAnswer(noContextAnswer), nil
	}

	contextText := formatContextText(bundle)
	fallbackPages := bundle.Pages()

	// A short or pronoun-laden query keeps answering from the previous
	// turn's context instead of the fresh retrieval.
	if session != nil && uc.assembler.IsFollowup(query, session.HasPriorContext()) {
		contextText = session.CurrentContext
		if pages := session.LastBundle.Pages(); len(pages) > 0 {
			fallbackPages = pages
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, uc.genTimeout)
	defer cancel()

	raw, err := uc.generator.GenerateJSONFromPrompt(genCtx, buildAnswerPrompt(query, contextText))
	if err != nil {
		slog.Error("answer_generation_failed", "error", err)
		return errorAnswer("Error generating response: " + err.Error()), nil
	}

	answer := parseAnswerJSON(raw, fallbackPages)
	uc.saveTurn(ctx, session, query, answer, formatContextText(bundle), bundle)
	return answer, nil
}

func (uc *ManualQueryUseCase) loadSession(ctx context.Context, sessionID string) *domain.Session {
	if sessionID == "" || uc.sessions == nil {
		return nil
	}
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		slog.Warn("session_lookup_failed", "session_id", sessionID, "error", err)
		return nil
	}
	return session
}

// saveTurn records the freshly assembled bundle as the session's current
// context for the next turn. Session write failures are logged, never
// surfaced: the answer is already composed.
func (uc *ManualQueryUseCase) saveTurn(
	ctx context.Context,
	session *domain.Session,
	query string,
	answer domain.Answer,
	contextText string,
	bundle domain.ContextBundle,
) {
	if session == nil || uc.sessions == nil {
		return
	}
	if err := uc.sessions.SaveContext(ctx, session.ID, contextText, bundle); err != nil {
		slog.Warn("session_context_save_failed", "session_id", session.ID, "error", err)
	}
	turn := domain.SessionTurn{
		Query:     query,
		Answer:    answer.Answer,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.sessions.AppendTurn(ctx, session.ID, turn); err != nil {
		slog.Warn("session_turn_save_failed", "session_id", session.ID, "error", err)
	}
}
