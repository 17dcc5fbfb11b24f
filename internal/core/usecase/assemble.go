package usecase

import (
	"strings"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// Follow-up detection is a literal heuristic, not coreference resolution:
// a query is a follow-up when it is short or leans on pronouns and
// continuation phrases. Single words match whole tokens; phrases match as
// substrings of the lowercased query.
var followupTokens = map[string]struct{}{
	"it": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"they": {}, "them": {}, "their": {}, "he": {}, "she": {},
	"his": {}, "her": {}, "and": {}, "also": {}, "additionally": {},
	"explain": {}, "elaborate": {}, "summarize": {}, "resume": {},
	"continue": {},
}

var followupPhrases = []string{
	"what about",
	"how about",
	"can you",
	"tell me more",
	"go on",
}

const followupMaxTokens = 5

// IsFollowupQuery reports whether the query likely references the previous
// turn's context.
func IsFollowupQuery(query string) bool {
	lowered := strings.ToLower(query)
	tokens := strings.Fields(lowered)
	if len(tokens) <= followupMaxTokens {
		return true
	}
	for _, token := range tokens {
		token = strings.Trim(token, ".,!?;:\"'")
		if _, ok := followupTokens[token]; ok {
			return true
		}
	}
	for _, phrase := range followupPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// ContextAssembler merges top text chunks and top-ranked images into one
// prompt-ready bundle and decides whether a query should reuse the
// previous turn's context instead.
type ContextAssembler struct{}

func NewContextAssembler() *ContextAssembler {
	return &ContextAssembler{}
}

// IsFollowup applies the follow-up heuristic; reuse additionally requires
// that a previous turn actually left context behind.
func (a *ContextAssembler) IsFollowup(query string, hasPriorContext bool) bool {
	return hasPriorContext && IsFollowupQuery(query)
}

// Assemble builds a fresh bundle from ranked chunks and image hits. Image
// entries keep the ranker's descending order; hits whose path is missing
// from the context map are dropped rather than emitted without a page.
func (a *ContextAssembler) Assemble(
	chunks []domain.Chunk,
	images []domain.SimilarityResult,
	imageContexts map[string]domain.ManualImage,
) domain.ContextBundle {
	bundle := domain.ContextBundle{
		TextContexts:  make([]domain.TextContext, 0, len(chunks)),
		ImageContexts: make([]domain.ImageContext, 0, len(images)),
	}
	for _, chunk := range chunks {
		bundle.TextContexts = append(bundle.TextContexts, domain.TextContext{
			Text:         chunk.Text,
			SectionTitle: chunk.SectionTitle,
			StartPage:    chunk.StartPage,
			Score:        chunk.Score,
		})
	}
	for _, hit := range images {
		img, ok := imageContexts[hit.ImagePath]
		if !ok {
			continue
		}
		bundle.ImageContexts = append(bundle.ImageContexts, domain.ImageContext{
			ImagePath:  hit.ImagePath,
			PageNum:    img.PageNum,
			NearbyText: img.NearbyText,
			Score:      hit.Score,
		})
	}
	return bundle
}
