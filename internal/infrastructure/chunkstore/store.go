package chunkstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// Store holds the manual's pre-chunked text in memory. It is the source
// of truth for reranking and page lookup: loaded once at startup from the
// ingestion pipeline's artifact and never mutated afterwards, so reads
// need no locking.
type Store struct {
	chunks []domain.Chunk
	byID   map[string]int
	byPage map[int][]int
}

// Load reads the chunk artifact (a JSON array of {id, text, section_title,
// start_page} records). A missing or unreadable source is a configuration
// failure: it means the ingestion pipeline was never run.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "read chunk source", err)
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "parse chunk source", err)
	}

	return New(chunks)
}

// New builds a store from already-decoded chunks, validating identity and
// page invariants.
func New(chunks []domain.Chunk) (*Store, error) {
	store := &Store{
		chunks: chunks,
		byID:   make(map[string]int, len(chunks)),
		byPage: make(map[int][]int, len(chunks)),
	}
	for i, chunk := range chunks {
		if chunk.ID == "" {
			return nil, domain.WrapError(domain.ErrConfiguration, "validate chunks",
				fmt.Errorf("chunk %d has empty id", i))
		}
		if _, dup := store.byID[chunk.ID]; dup {
			return nil, domain.WrapError(domain.ErrConfiguration, "validate chunks",
				fmt.Errorf("duplicate chunk id %q", chunk.ID))
		}
		if chunk.StartPage <= 0 {
			return nil, domain.WrapError(domain.ErrConfiguration, "validate chunks",
				fmt.Errorf("chunk %q has invalid start page %d", chunk.ID, chunk.StartPage))
		}
		store.byID[chunk.ID] = i
		store.byPage[chunk.StartPage] = append(store.byPage[chunk.StartPage], i)
	}
	return store, nil
}

// All returns the chunks in load order. Callers must not mutate the
// returned slice elements' identity fields; Score is theirs to set.
func (s *Store) All() []domain.Chunk {
	out := make([]domain.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func (s *Store) ByID(id string) (domain.Chunk, error) {
	i, ok := s.byID[id]
	if !ok {
		return domain.Chunk{}, domain.WrapError(domain.ErrNotFound, "chunk by id",
			fmt.Errorf("chunk %q not in store", id))
	}
	return s.chunks[i], nil
}

// ByPage returns every chunk on the page in load order.
func (s *Store) ByPage(page int) []domain.Chunk {
	indices := s.byPage[page]
	out := make([]domain.Chunk, 0, len(indices))
	for _, i := range indices {
		out = append(out, s.chunks[i])
	}
	return out
}

func (s *Store) Len() int {
	return len(s.chunks)
}
