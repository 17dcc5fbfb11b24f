package usecase

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/manualqa/manual-assistant/internal/core/domain"
	"github.com/manualqa/manual-assistant/internal/core/ports"
)

// VisualRanker embeds a cropped query image and candidate manual images
// into a shared visual space and ranks candidates by cosine similarity.
type VisualRanker struct {
	embedder ports.VisualEmbedder
	images   ports.ImageIndex
	timeout  time.Duration
}

func NewVisualRanker(embedder ports.VisualEmbedder, images ports.ImageIndex, timeout time.Duration) *VisualRanker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VisualRanker{
		embedder: embedder,
		images:   images,
		timeout:  timeout,
	}
}

// Rank scores every candidate against the query crop, descending by
// cosine similarity with ties keeping candidate order. Candidates that
// fail to load or embed are skipped with a warning. An empty result is a
// valid "nothing visually similar" outcome, not an error; the only error
// is a query image that cannot be embedded at all.
func (r *VisualRanker) Rank(ctx context.Context, queryImagePNG []byte, candidatePaths []string, topK int) ([]domain.SimilarityResult, error) {
	queryVec, err := r.embedImage(ctx, queryImagePNG)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "embed query image", err)
	}

	results := make([]domain.SimilarityResult, 0, len(candidatePaths))
	for _, path := range candidatePaths {
		data, err := r.images.LoadImage(path)
		if err != nil {
			slog.Warn("candidate_image_unreadable", "path", path, "error", err)
			continue
		}
		vec, err := r.embedImage(ctx, data)
		if err != nil {
			slog.Warn("candidate_image_embed_failed", "path", path, "error", err)
			continue
		}
		results = append(results, domain.SimilarityResult{
			ImagePath: path,
			Score:     dotProduct(queryVec, vec),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (r *VisualRanker) embedImage(ctx context.Context, imagePNG []byte) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vec, err := r.embedder.EmbedImage(embedCtx, imagePNG)
	if err != nil {
		return nil, err
	}
	return unitNormalize(vec), nil
}

// unitNormalize guards against an embedding service that returns raw
// vectors; after it, dot product equals cosine similarity.
func unitNormalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
