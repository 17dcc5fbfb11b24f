package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func TestSearchReturnsChunkHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/manual/points/search" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["limit"].(float64) != 2 {
			t.Fatalf("expected limit 2, got %v", req["limit"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"score": 0.92, "payload": map[string]any{"chunk_id": "c1"}},
				{"score": 0.80, "payload": map[string]any{"chunk_id": "c2"}},
				{"score": 0.50, "payload": map[string]any{}},
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, "manual", &stubEmbedder{vector: []float32{0.1, 0.2}})
	hits, err := client.Search(context.Background(), "engine oil", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits (payload-less dropped), got %d", len(hits))
	}
	if hits[0].ID != "c1" || hits[0].Distance != 0.92 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
}

func TestSearchMissingCollectionYieldsNoHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "manual", &stubEmbedder{vector: []float32{0.1}})
	hits, err := client.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("expected missing collection to be empty, got %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	client := New("http://unused", "manual", &stubEmbedder{vector: []float32{0.1}})
	if _, err := client.Search(context.Background(), "q", 0); err == nil {
		t.Fatal("expected error for k=0")
	}
}

func TestUpsertCreatesCollectionAndWritesPoints(t *testing.T) {
	var createdCollection, wrotePoints bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/manual":
			createdCollection = true
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			vectors := req["vectors"].(map[string]any)
			if vectors["size"].(float64) != 3 {
				t.Fatalf("expected vector size 3, got %v", vectors["size"])
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/manual/points":
			wrotePoints = true
			var req struct {
				Points []struct {
					ID      string         `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatal(err)
			}
			if len(req.Points) != 2 {
				t.Fatalf("expected 2 points, got %d", len(req.Points))
			}
			if req.Points[0].Payload["chunk_id"] != "c1" {
				t.Fatalf("expected chunk_id payload, got %v", req.Points[0].Payload)
			}
			if req.Points[0].ID == "c1" {
				t.Fatal("expected point id mapped to UUID space, not raw chunk id")
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL, "manual", &stubEmbedder{vector: []float32{0.1, 0.2, 0.3}})
	err := client.Upsert(context.Background(), []domain.Chunk{
		{ID: "c1", Text: "one", SectionTitle: "A", StartPage: 1},
		{ID: "c2", Text: "two", SectionTitle: "B", StartPage: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !createdCollection || !wrotePoints {
		t.Fatalf("expected collection create and point write, got create=%v write=%v", createdCollection, wrotePoints)
	}
}

func TestUpsertToleratesExistingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/manual" {
			http.Error(w, "already exists", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL, "manual", &stubEmbedder{vector: []float32{0.5}})
	err := client.Upsert(context.Background(), []domain.Chunk{{ID: "c1", Text: "one", StartPage: 1}})
	if err != nil {
		t.Fatalf("expected 409 tolerated, got %v", err)
	}
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	client := New("http://unused", "manual", &stubEmbedder{})
	if err := client.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCountMissingCollectionIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "manual", &stubEmbedder{})
	count, err := client.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero count, got %d", count)
	}
}

func TestCountReadsExactResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/manual/points/count" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": 42}})
	}))
	defer server.Close()

	client := New(server.URL, "manual", &stubEmbedder{})
	count, err := client.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Fatalf("expected 42, got %d", count)
	}
}

func TestPointIDDeterministic(t *testing.T) {
	if pointID("chunk-1") != pointID("chunk-1") {
		t.Fatal("expected stable point id for the same chunk id")
	}
	if pointID("chunk-1") == pointID("chunk-2") {
		t.Fatal("expected distinct point ids for distinct chunk ids")
	}
}
