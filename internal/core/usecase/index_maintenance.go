package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/manualqa/manual-assistant/internal/core/domain"
	"github.com/manualqa/manual-assistant/internal/core/ports"
)

const defaultIndexBatchSize = 100

// IndexMaintenanceUseCase backfills the vector index from the chunk store
// when the index is under-populated relative to the corpus. Inserts are
// batched to bound memory on large manuals.
type IndexMaintenanceUseCase struct {
	store     ports.ChunkStore
	index     ports.VectorIndex
	queue     ports.ReindexQueue
	batchSize int

	// Single-writer barrier: concurrent first-time initializations must
	// not double-insert. The count-then-add check tolerates the benign
	// race with an external writer.
	mu sync.Mutex
}

func NewIndexMaintenanceUseCase(
	store ports.ChunkStore,
	index ports.VectorIndex,
	queue ports.ReindexQueue,
	batchSize int,
) *IndexMaintenanceUseCase {
	if batchSize <= 0 {
		batchSize = defaultIndexBatchSize
	}
	return &IndexMaintenanceUseCase{
		store:     store,
		index:     index,
		queue:     queue,
		batchSize: batchSize,
	}
}

// EnsureIndexed inserts every chunk not yet present in the index. An
// unreachable index at startup is a configuration failure, not retried
// here.
func (uc *IndexMaintenanceUseCase) EnsureIndexed(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	count, err := uc.index.Count(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrConfiguration, "count indexed chunks", err)
	}

	chunks := uc.store.All()
	if count >= len(chunks) {
		return nil
	}

	missing := chunks[count:]
	slog.Info("vector_index_backfill", "indexed", count, "total", len(chunks), "missing", len(missing))

	for start := 0; start < len(missing); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		if err := uc.index.Upsert(ctx, missing[start:end]); err != nil {
			return domain.WrapError(domain.ErrUpstream, "upsert chunk batch", err)
		}
	}
	return nil
}

// RequestReindex hands the backfill to the worker queue, falling back to
// an inline backfill when the queue is unavailable.
func (uc *IndexMaintenanceUseCase) RequestReindex(ctx context.Context, reason string) error {
	if uc.queue != nil {
		err := uc.queue.PublishReindexRequested(ctx, reason)
		if err == nil {
			return nil
		}
		slog.Warn("reindex_publish_failed", "error", err)
	}
	return uc.EnsureIndexed(ctx)
}
