package ports

import (
	"context"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// ChunkStore is the in-memory source of truth for manual chunks. Loaded
// once at startup; safe for concurrent reads.
type ChunkStore interface {
	All() []domain.Chunk
	ByID(id string) (domain.Chunk, error)
	ByPage(page int) []domain.Chunk
	Len() int
}

// VectorHit is one nearest-neighbor result.
type VectorHit struct {
	ID       string
	Distance float64
}

// VectorIndex wraps the black-box nearest-neighbor store. Search may
// return fewer than k hits; an empty index yields an empty slice, not an
// error.
type VectorIndex interface {
	Search(ctx context.Context, queryText string, k int) ([]VectorHit, error)
	Upsert(ctx context.Context, chunks []domain.Chunk) error
	Count(ctx context.Context) (int, error)
}

// TextGenerator is the black-box text-completion service. Each caller
// supplies its own prompt template.
type TextGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
	DescribeImage(ctx context.Context, prompt string, imagePNG []byte) (string, error)
}

// VisualEmbedder maps an image to a unit-normalized vector in a shared
// visual embedding space.
type VisualEmbedder interface {
	EmbedImage(ctx context.Context, imagePNG []byte) ([]float32, error)
}

// ImageIndex reads the document's flat page-to-images artifact.
type ImageIndex interface {
	ImagesOnPages(pages []int) []domain.ManualImage
	LoadImage(path string) ([]byte, error)
}

// ImageCropper crops a rectangle out of an image file, clamped to bounds,
// returning PNG bytes.
type ImageCropper interface {
	Crop(path string, box domain.Rect) ([]byte, error)
}

// SessionStore is the explicit session abstraction keyed by opaque id.
// No hidden process-wide mutable map: callers create, read and delete
// sessions through it.
type SessionStore interface {
	Create(ctx context.Context) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	SaveContext(ctx context.Context, id, contextText string, bundle domain.ContextBundle) error
	AppendTurn(ctx context.Context, id string, turn domain.SessionTurn) error
	Delete(ctx context.Context, id string) error
}

// ReindexQueue hands index backfill work to the worker.
type ReindexQueue interface {
	PublishReindexRequested(ctx context.Context, reason string) error
	SubscribeReindexRequested(ctx context.Context, handler func(context.Context, string) error) error
}
