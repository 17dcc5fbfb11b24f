package usecase

import (
	"context"
	"fmt"

	"github.com/manualqa/manual-assistant/internal/core/domain"
	"github.com/manualqa/manual-assistant/internal/core/ports"
)

type fakeChunkStore struct {
	chunks []domain.Chunk
}

func (s *fakeChunkStore) All() []domain.Chunk {
	out := make([]domain.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func (s *fakeChunkStore) ByID(id string) (domain.Chunk, error) {
	for _, chunk := range s.chunks {
		if chunk.ID == id {
			return chunk, nil
		}
	}
	return domain.Chunk{}, domain.WrapError(domain.ErrNotFound, "get chunk", fmt.Errorf("chunk %q", id))
}

func (s *fakeChunkStore) ByPage(page int) []domain.Chunk {
	var out []domain.Chunk
	for _, chunk := range s.chunks {
		if chunk.StartPage == page {
			out = append(out, chunk)
		}
	}
	return out
}

func (s *fakeChunkStore) Len() int { return len(s.chunks) }

type fakeVectorIndex struct {
	hits      []ports.VectorHit
	searchErr error
	count     int
	countErr  error

	upserted  [][]domain.Chunk
	upsertErr error
	lastQuery string
	lastK     int
}

func (f *fakeVectorIndex) Search(_ context.Context, queryText string, k int) ([]ports.VectorHit, error) {
	f.lastQuery = queryText
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeVectorIndex) Upsert(_ context.Context, chunks []domain.Chunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	batch := make([]domain.Chunk, len(chunks))
	copy(batch, chunks)
	f.upserted = append(f.upserted, batch)
	return nil
}

func (f *fakeVectorIndex) Count(context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

type fakeGenerator struct {
	textResponse string
	textErr      error
	jsonResponse string
	jsonErr      error
	describeText string
	describeErr  error

	prompts     []string
	jsonPrompts []string
}

func (f *fakeGenerator) GenerateFromPrompt(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.textResponse, f.textErr
}

func (f *fakeGenerator) GenerateJSONFromPrompt(_ context.Context, prompt string) (string, error) {
	f.jsonPrompts = append(f.jsonPrompts, prompt)
	return f.jsonResponse, f.jsonErr
}

func (f *fakeGenerator) DescribeImage(context.Context, string, []byte) (string, error) {
	return f.describeText, f.describeErr
}

type fakeSessionStore struct {
	sessions map[string]*domain.Session
	saved    map[string]domain.ContextBundle
	turns    map[string][]domain.SessionTurn
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]*domain.Session),
		saved:    make(map[string]domain.ContextBundle),
		turns:    make(map[string][]domain.SessionTurn),
	}
}

func (f *fakeSessionStore) Create(context.Context) (*domain.Session, error) {
	session := &domain.Session{ID: fmt.Sprintf("s%d", len(f.sessions)+1)}
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeSessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", fmt.Errorf("session %q", id))
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionStore) SaveContext(_ context.Context, id, contextText string, bundle domain.ContextBundle) error {
	session, ok := f.sessions[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "save session context", fmt.Errorf("session %q", id))
	}
	session.CurrentContext = contextText
	session.LastBundle = bundle
	f.saved[id] = bundle
	return nil
}

func (f *fakeSessionStore) AppendTurn(_ context.Context, id string, turn domain.SessionTurn) error {
	f.turns[id] = append(f.turns[id], turn)
	return nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id string) error {
	if _, ok := f.sessions[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete session", fmt.Errorf("session %q", id))
	}
	delete(f.sessions, id)
	return nil
}

type fakeVisualEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeVisualEmbedder) EmbedImage(_ context.Context, imagePNG []byte) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vectors[string(imagePNG)]
	if !ok {
		return nil, fmt.Errorf("no vector for image %q", string(imagePNG))
	}
	return vec, nil
}

type fakeImageIndex struct {
	images map[int][]domain.ManualImage
	files  map[string][]byte
}

func (f *fakeImageIndex) ImagesOnPages(pages []int) []domain.ManualImage {
	var out []domain.ManualImage
	for _, page := range pages {
		out = append(out, f.images[page]...)
	}
	return out
}

func (f *fakeImageIndex) LoadImage(path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "load image", fmt.Errorf("image %q", path))
	}
	return data, nil
}

type fakeCropper struct {
	crop []byte
	err  error
}

func (f *fakeCropper) Crop(string, domain.Rect) ([]byte, error) {
	return f.crop, f.err
}

type fakeReindexQueue struct {
	published  []string
	publishErr error
}

func (f *fakeReindexQueue) PublishReindexRequested(_ context.Context, reason string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, reason)
	return nil
}

func (f *fakeReindexQueue) SubscribeReindexRequested(context.Context, func(context.Context, string) error) error {
	return nil
}
