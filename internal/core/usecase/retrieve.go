package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/manualqa/manual-assistant/internal/core/domain"
	"github.com/manualqa/manual-assistant/internal/core/ports"
)

// pageRefPattern matches explicit page references ("page 5", "p. 10") in
// the raw query, case-insensitive.
var pageRefPattern = regexp.MustCompile(`(?i)page\s+(\d+)|p\.\s*(\d+)`)

// RetrievalConfig tunes the text retrieval pipeline.
type RetrievalConfig struct {
	// SearchMultiplier widens the vector search to topK*SearchMultiplier
	// candidates so the reranker has material to work with. Minimum 2.
	SearchMultiplier int
	// PageLookback is how many top vector hits contribute their pages to
	// the co-location expansion.
	PageLookback int
	// SearchTimeout bounds each vector index call.
	SearchTimeout time.Duration
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	out := c
	if out.SearchMultiplier < 2 {
		out.SearchMultiplier = 2
	}
	if out.PageLookback <= 0 {
		out.PageLookback = 5
	}
	if out.SearchTimeout <= 0 {
		out.SearchTimeout = 15 * time.Second
	}
	return out
}

// TextRetrieval turns a free-text query into an ordered, page-anchored
// chunk list. The pipeline runs expansion, vector search, hydration, page
// co-location expansion, explicit page-reference override, lexical rerank
// and truncation, in that order. It never fails past its boundary: vector
// errors degrade to a lexical-only pass over the chunk store, and an empty
// result means the store itself is empty.
type TextRetrieval struct {
	store    ports.ChunkStore
	index    ports.VectorIndex
	expander *QueryExpander
	cfg      RetrievalConfig
}

func NewTextRetrieval(
	store ports.ChunkStore,
	index ports.VectorIndex,
	expander *QueryExpander,
	cfg RetrievalConfig,
) *TextRetrieval {
	return &TextRetrieval{
		store:    store,
		index:    index,
		expander: expander,
		cfg:      cfg.normalize(),
	}
}

// Retrieve returns the topK most relevant chunks for the query. When the
// store is non-empty the result always has exactly min(topK, store size)
// entries, padded with unused chunks at zero confidence if the ranked set
// came up short.
func (r *TextRetrieval) Retrieve(ctx context.Context, query string, topK int) []domain.Chunk {
	if topK <= 0 {
		topK = 3
	}
	if r.store.Len() == 0 {
		return nil
	}

	hydrated, ok := r.vectorCandidates(ctx, query, topK*r.cfg.SearchMultiplier)
	if !ok {
		// Pure lexical fallback over the whole store.
		return r.pad(rerankChunks(r.store.All(), query, topK), topK)
	}

	pages := topPages(hydrated, r.cfg.PageLookback)
	candidates := r.chunksOnPages(pages)
	reranked := rerankChunks(candidates, query, topK)

	// Force-include explicitly referenced pages; rerank only if the page
	// set actually grew.
	pages, added := addReferencedPages(query, pages)
	if added {
		candidates = r.chunksOnPages(pages)
		reranked = rerankChunks(candidates, query, topK)
	}

	return r.pad(reranked, topK)
}

// TopPages returns the distinct start pages of the best n hits for the
// query, used by the image pipeline to build its candidate pool.
func (r *TextRetrieval) TopPages(ctx context.Context, query string, n int) []int {
	if n <= 0 {
		n = r.cfg.PageLookback
	}
	hydrated, ok := r.vectorCandidates(ctx, query, n*r.cfg.SearchMultiplier)
	if !ok {
		hydrated = rerankChunks(r.store.All(), query, n)
	}
	return topPages(hydrated, n)
}

// vectorCandidates runs the expansion and vector-search stages and hydrates
// the hits against the chunk store. ok=false signals the lexical fallback
// path (search failed or the index returned no signal).
func (r *TextRetrieval) vectorCandidates(ctx context.Context, query string, searchK int) ([]domain.Chunk, bool) {
	expanded := query
	if r.expander != nil {
		expanded = r.expander.Expand(ctx, query)
	}

	if corpus := r.store.Len(); searchK > corpus {
		searchK = corpus
	}
	if searchK < 1 {
		searchK = 1
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	hits, err := r.index.Search(searchCtx, expanded, searchK)
	if err != nil {
		slog.Warn("vector_search_failed", "error", err)
		return nil, false
	}
	if len(hits) == 0 {
		return nil, false
	}

	hydrated := make([]domain.Chunk, 0, len(hits))
	for _, hit := range hits {
		chunk, err := r.store.ByID(hit.ID)
		if err != nil {
			slog.Warn("chunk_id_unresolved", "chunk_id", hit.ID)
			continue
		}
		chunk.Score = hit.Distance
		hydrated = append(hydrated, chunk)
	}
	if len(hydrated) == 0 {
		return nil, false
	}
	return hydrated, true
}

// chunksOnPages gathers every chunk on the given pages in store load
// order, not just the ones the vector search surfaced.
func (r *TextRetrieval) chunksOnPages(pages []int) []domain.Chunk {
	pageSet := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		pageSet[p] = struct{}{}
	}
	var out []domain.Chunk
	for _, chunk := range r.store.All() {
		if _, ok := pageSet[chunk.StartPage]; ok {
			out = append(out, chunk)
		}
	}
	return out
}

// pad tops the result up to topK with the first unused store chunks at
// zero confidence. Partial low-quality context beats none downstream.
func (r *TextRetrieval) pad(ranked []domain.Chunk, topK int) []domain.Chunk {
	if topK > r.store.Len() {
		topK = r.store.Len()
	}
	if len(ranked) >= topK {
		return ranked[:topK]
	}

	used := make(map[string]struct{}, len(ranked))
	for _, chunk := range ranked {
		used[chunk.ID] = struct{}{}
	}
	for _, chunk := range r.store.All() {
		if len(ranked) >= topK {
			break
		}
		if _, ok := used[chunk.ID]; ok {
			continue
		}
		chunk.Score = 0
		ranked = append(ranked, chunk)
	}
	return ranked
}

// addReferencedPages appends pages named in the raw query ("page 12",
// "p. 7") to pages, reporting whether anything new was added.
func addReferencedPages(query string, pages []int) ([]int, bool) {
	refs := extractPageReferences(query)
	if len(refs) == 0 {
		return pages, false
	}
	have := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		have[p] = struct{}{}
	}
	added := false
	for _, p := range refs {
		if _, ok := have[p]; ok {
			continue
		}
		have[p] = struct{}{}
		pages = append(pages, p)
		added = true
	}
	return pages, added
}

// extractPageReferences pulls explicit page numbers out of a query.
func extractPageReferences(query string) []int {
	matches := pageRefPattern.FindAllStringSubmatch(query, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		for _, group := range m[1:] {
			if group == "" {
				continue
			}
			n, err := strconv.Atoi(group)
			if err != nil || n <= 0 {
				continue
			}
			out = append(out, n)
			break
		}
	}
	return out
}

// topPages collects the distinct start pages of the first n chunks in
// first-seen order.
func topPages(chunks []domain.Chunk, n int) []int {
	if n > len(chunks) {
		n = len(chunks)
	}
	seen := make(map[int]struct{}, n)
	out := make([]int, 0, n)
	for _, chunk := range chunks[:n] {
		if _, ok := seen[chunk.StartPage]; ok {
			continue
		}
		seen[chunk.StartPage] = struct{}{}
		out = append(out, chunk.StartPage)
	}
	return out
}
