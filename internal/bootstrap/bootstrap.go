package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/manualqa/manual-assistant/internal/config"
	"github.com/manualqa/manual-assistant/internal/core/ports"
	"github.com/manualqa/manual-assistant/internal/core/usecase"
	"github.com/manualqa/manual-assistant/internal/infrastructure/chunkstore"
	"github.com/manualqa/manual-assistant/internal/infrastructure/imageindex"
	"github.com/manualqa/manual-assistant/internal/infrastructure/imaging"
	"github.com/manualqa/manual-assistant/internal/infrastructure/llm/ollama"
	natsqueue "github.com/manualqa/manual-assistant/internal/infrastructure/queue/nats"
	"github.com/manualqa/manual-assistant/internal/infrastructure/resilience"
	sessionmemory "github.com/manualqa/manual-assistant/internal/infrastructure/session/memory"
	sessionpostgres "github.com/manualqa/manual-assistant/internal/infrastructure/session/postgres"
	"github.com/manualqa/manual-assistant/internal/infrastructure/vector/qdrant"
	"github.com/manualqa/manual-assistant/internal/infrastructure/visual/clip"
)

// App wires the retrieval pipeline end to end: chunk store and image
// index from disk, Qdrant for vectors, Ollama for generation and
// embeddings, CLIP for visual ranking, sessions in memory or Postgres,
// NATS for reindex requests.
type App struct {
	Config config.Config

	Queue       ports.ReindexQueue
	Sessions    ports.SessionStore
	ManualQuery ports.ManualQueryService
	ImageQuery  ports.DashboardQueryService
	Maintainer  *usecase.IndexMaintenanceUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := chunkstore.Load(filepath.Join(cfg.ContentDir, cfg.ChunksFile))
	if err != nil {
		return nil, fmt.Errorf("load chunk store: %w", err)
	}
	images, err := imageindex.Load(filepath.Join(cfg.ContentDir, cfg.ImageIndexFile))
	if err != nil {
		return nil, fmt.Errorf("load image index: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		VisionModel:        cfg.OllamaVisionModel,
		ResilienceExecutor: executor,
	})
	generator := ollama.NewGenerator(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	vectorIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)
	visualEmbedder := clip.New(cfg.CLIPURL, cfg.CLIPModel, time.Duration(cfg.VisualTimeoutSeconds)*time.Second)

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var queue ports.ReindexQueue
	var closeQueue func()
	natsQueue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		// Reindexing falls back to inline execution without a broker.
		slog.Warn("nats_unavailable", "error", err)
	} else {
		queue = natsQueue
		closeQueue = natsQueue.Close
	}

	expander := usecase.NewQueryExpander(generator, cfg.QueryExpansion, time.Duration(cfg.ExpandTimeoutSeconds)*time.Second)
	retrieval := usecase.NewTextRetrieval(store, vectorIndex, expander, usecase.RetrievalConfig{
		SearchMultiplier: cfg.RAGSearchMultiplier,
		PageLookback:     cfg.RAGPageLookback,
		SearchTimeout:    time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
	})
	assembler := usecase.NewContextAssembler()
	ranker := usecase.NewVisualRanker(visualEmbedder, images, time.Duration(cfg.VisualTimeoutSeconds)*time.Second)
	cropper := imaging.NewCropper()

	genTimeout := time.Duration(cfg.GenTimeoutSeconds) * time.Second
	manualQuery := usecase.NewManualQueryUseCase(retrieval, assembler, generator, sessions, genTimeout)
	imageQuery := usecase.NewDashboardQueryUseCase(store, retrieval, ranker, assembler, cropper, images, generator, usecase.DashboardConfig{
		CandidatePages: cfg.ImageCandidatePages,
		ImageTopK:      cfg.ImageTopK,
		GenTimeout:     genTimeout,
	})
	maintainer := usecase.NewIndexMaintenanceUseCase(store, vectorIndex, queue, cfg.IndexBatchSize)

	return &App{
		Config:      cfg,
		Queue:       queue,
		Sessions:    sessions,
		ManualQuery: manualQuery,
		ImageQuery:  imageQuery,
		Maintainer:  maintainer,

		closeFn: func() {
			if closeQueue != nil {
				closeQueue()
			}
			if closeSessions != nil {
				closeSessions()
			}
		},
	}, nil
}

func newSessionStore(ctx context.Context, cfg config.Config) (ports.SessionStore, func(), error) {
	switch cfg.SessionBackend {
	case "postgres":
		db, err := sessionpostgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store := sessionpostgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure session schema: %w", err)
		}
		return store, func() { _ = db.Close() }, nil
	case "", "memory":
		return sessionmemory.NewStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
