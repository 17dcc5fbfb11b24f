package ports

import (
	"context"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// ManualQueryService is the inbound contract for text questions about the
// manual. Answer never fails hard: degraded results carry the error text
// inside the answer field to keep the caller's JSON contract stable.
type ManualQueryService interface {
	Answer(ctx context.Context, sessionID, query string, topK int) (domain.Answer, error)
}

// DashboardQueryService is the inbound contract for dashboard-photo
// questions: crop, describe, retrieve, rank, answer.
type DashboardQueryService interface {
	AnswerComponent(ctx context.Context, imagePath string, box domain.Rect, topK int) (domain.Answer, error)
}

// IndexMaintainer backfills the vector index from the chunk store.
type IndexMaintainer interface {
	EnsureIndexed(ctx context.Context) error
}
