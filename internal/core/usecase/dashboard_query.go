package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/manualqa/manual-assistant/internal/core/domain"
	"github.com/manualqa/manual-assistant/internal/core/ports"
)

// DashboardConfig tunes the image pipeline.
type DashboardConfig struct {
	// CandidatePages is how many top retrieved pages feed the image
	// candidate pool.
	CandidatePages int
	// ImageTopK is how many visually ranked images survive into the
	// final bundle.
	ImageTopK int
	// GenTimeout bounds each language-model call.
	GenTimeout time.Duration
}

func (c DashboardConfig) normalize() DashboardConfig {
	out := c
	if out.CandidatePages <= 0 {
		out.CandidatePages = 20
	}
	if out.ImageTopK <= 0 {
		out.ImageTopK = 3
	}
	if out.GenTimeout <= 0 {
		out.GenTimeout = 60 * time.Second
	}
	return out
}

// DashboardQueryUseCase answers questions about a cropped dashboard
// photograph: describe the crop, retrieve candidate manual pages from the
// description, rank the pages' images by visual similarity, rerank the
// chunks co-located with the winning images, then compose the answer.
type DashboardQueryUseCase struct {
	store     ports.ChunkStore
	retrieval *TextRetrieval
	ranker    *VisualRanker
	assembler *ContextAssembler
	cropper   ports.ImageCropper
	images    ports.ImageIndex
	generator ports.TextGenerator
	cfg       DashboardConfig
}

func NewDashboardQueryUseCase(
	store ports.ChunkStore,
	retrieval *TextRetrieval,
	ranker *VisualRanker,
	assembler *ContextAssembler,
	cropper ports.ImageCropper,
	images ports.ImageIndex,
	generator ports.TextGenerator,
	cfg DashboardConfig,
) *DashboardQueryUseCase {
	return &DashboardQueryUseCase{
		store:     store,
		retrieval: retrieval,
		ranker:    ranker,
		assembler: assembler,
		cropper:   cropper,
		images:    images,
		generator: generator,
		cfg:       cfg.normalize(),
	}
}

func (uc *DashboardQueryUseCase) AnswerComponent(ctx context.Context, imagePath string, box domain.Rect, topK int) (domain.Answer, error) {
	if topK <= 0 {
		topK = 3
	}

	crop, err := uc.cropper.Crop(imagePath, box)
	if err != nil {
		return domain.Answer{}, domain.WrapError(domain.ErrNotFound, "crop query image", err)
	}

	description, err := uc.describe(ctx, crop)
	if err != nil {
		slog.Error("image_description_failed", "error", err)
		return errorAnswer("Error generating response: " + err.Error()), nil
	}

	// Keywords widen the page retrieval; reranking sticks to the plain
	// description.
	retrievalQuery := description
	if keywords := uc.extractKeywords(ctx, description); keywords != "" {
		retrievalQuery = description + " " + keywords
	}

	pages := uc.retrieval.TopPages(ctx, retrievalQuery, uc.cfg.CandidatePages)
	candidates := uc.images.ImagesOnPages(pages)
	paths := make([]string, 0, len(candidates))
	contextMap := make(map[string]domain.ManualImage, len(candidates))
	for _, img := range candidates {
		paths = append(paths, img.Path)
		contextMap[img.Path] = img
	}

	ranked, err := uc.ranker.Rank(ctx, crop, paths, uc.cfg.ImageTopK)
	if err != nil {
		slog.Warn("visual_ranking_skipped", "error", err)
		ranked = nil
	}

	chunks := uc.chunksForImages(ctx, description, ranked, contextMap, topK)
	bundle := uc.assembler.Assemble(chunks, ranked, contextMap)

	genCtx, cancel := context.WithTimeout(ctx, uc.cfg.GenTimeout)
	defer cancel()

	raw, err := uc.generator.GenerateJSONFromPrompt(genCtx, buildComponentPrompt(description, formatContextText(bundle)))
	if err != nil {
		slog.Error("component_answer_failed", "error", err)
		return errorAnswer("Error generating response: " + err.Error()), nil
	}
	return parseAnswerJSON(raw, bundle.Pages()), nil
}

func (uc *DashboardQueryUseCase) describe(ctx context.Context, crop []byte) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, uc.cfg.GenTimeout)
	defer cancel()
	return uc.generator.DescribeImage(genCtx, buildDescriptionPrompt(), crop)
}

func (uc *DashboardQueryUseCase) extractKeywords(ctx context.Context, description string) string {
	genCtx, cancel := context.WithTimeout(ctx, uc.cfg.GenTimeout)
	defer cancel()

	raw, err := uc.generator.GenerateFromPrompt(genCtx, buildKeywordsPrompt(description))
	if err != nil {
		slog.Warn("keyword_extraction_failed", "error", err)
		return ""
	}
	return cleanKeywords(raw)
}

// chunksForImages gathers every chunk on the pages of the winning images
// and reranks them against the description. With no visual winners it
// falls back to plain text retrieval so the answer still has grounding.
func (uc *DashboardQueryUseCase) chunksForImages(
	ctx context.Context,
	description string,
	ranked []domain.SimilarityResult,
	contextMap map[string]domain.ManualImage,
	topK int,
) []domain.Chunk {
	if len(ranked) == 0 {
		return uc.retrieval.Retrieve(ctx, description, topK)
	}

	pageSet := make(map[int]struct{}, len(ranked))
	for _, hit := range ranked {
		img, ok := contextMap[hit.ImagePath]
		if !ok {
			continue
		}
		pageSet[img.PageNum] = struct{}{}
	}

	var candidates []domain.Chunk
	for _, chunk := range uc.store.All() {
		if _, ok := pageSet[chunk.StartPage]; ok {
			candidates = append(candidates, chunk)
		}
	}
	return rerankChunks(candidates, description, topK)
}
