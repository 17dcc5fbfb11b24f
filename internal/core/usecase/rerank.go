package usecase

import (
	"sort"
	"strings"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// rerankChunks rescores candidates by term overlap against the original,
// unexpanded query and returns the topK best. Scoring is intentionally
// plain: one point per distinct query term contained in the chunk text,
// two points per term contained in the section title. Not TF-IDF, not
// BM25. Sort is stable descending, so ties keep their input order.
func rerankChunks(chunks []domain.Chunk, query string, topK int) []domain.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	if topK <= 0 || topK > len(chunks) {
		topK = len(chunks)
	}

	terms := queryTerms(query)

	scored := make([]domain.Chunk, len(chunks))
	copy(scored, chunks)
	for i := range scored {
		scored[i].Score = lexicalScore(scored[i], terms)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored[:topK]
}

func lexicalScore(chunk domain.Chunk, terms []string) float64 {
	text := strings.ToLower(chunk.Text)
	title := strings.ToLower(chunk.SectionTitle)

	score := 0.0
	for _, term := range terms {
		if strings.Contains(text, term) {
			score++
		}
		if strings.Contains(title, term) {
			score += 2 // title matches get double weight
		}
	}
	return score
}

// queryTerms lowercases and whitespace-tokenizes the query, dropping
// duplicates while keeping first-seen order.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
