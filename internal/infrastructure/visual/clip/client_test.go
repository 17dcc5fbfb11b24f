package clip

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

func TestEmbedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["model"] != "clip-test" {
			t.Fatalf("expected model forwarded, got %q", req["model"])
		}
		decoded, err := base64.StdEncoding.DecodeString(req["image"])
		if err != nil || string(decoded) != "png-bytes" {
			t.Fatalf("expected base64 image payload, got %q (%v)", req["image"], err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.6, 0.8}})
	}))
	defer server.Close()

	client := New(server.URL, "clip-test", 0)
	vec, err := client.EmbedImage(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.6 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestEmbedImageEmptyInput(t *testing.T) {
	client := New("http://unused", "clip-test", 0)
	if _, err := client.EmbedImage(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestEmbedImageServerErrorIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "clip-test", 0)
	_, err := client.EmbedImage(context.Background(), []byte("png-bytes"))
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestEmbedImageEmptyVectorIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer server.Close()

	client := New(server.URL, "clip-test", 0)
	if _, err := client.EmbedImage(context.Background(), []byte("png-bytes")); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}
