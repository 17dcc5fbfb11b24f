package memory

import (
	"context"
	"testing"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

func TestCreateAndGetRoundTrip(t *testing.T) {
	store := NewStore()

	session, err := store.Create(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected generated session id")
	}

	got, err := store.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("expected same session, got %q", got.ID)
	}
}

func TestGetUnknownIsNotFound(t *testing.T) {
	store := NewStore()
	if _, err := store.Get(context.Background(), "ghost"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSaveContextPersistsBundle(t *testing.T) {
	store := NewStore()
	session, _ := store.Create(context.Background())

	bundle := domain.ContextBundle{
		TextContexts: []domain.TextContext{{Text: "oil", StartPage: 10}},
	}
	if err := store.SaveContext(context.Background(), session.ID, "context text", bundle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentContext != "context text" {
		t.Fatalf("unexpected context: %q", got.CurrentContext)
	}
	if len(got.LastBundle.TextContexts) != 1 || got.LastBundle.TextContexts[0].StartPage != 10 {
		t.Fatalf("unexpected bundle: %+v", got.LastBundle)
	}
	if !got.HasPriorContext() {
		t.Fatal("expected prior context after save")
	}
}

func TestAppendTurnAccumulates(t *testing.T) {
	store := NewStore()
	session, _ := store.Create(context.Background())

	for _, q := range []string{"first", "second"} {
		if err := store.AppendTurn(context.Background(), session.ID, domain.SessionTurn{Query: q}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, _ := store.Get(context.Background(), session.ID)
	if len(got.Turns) != 2 || got.Turns[1].Query != "second" {
		t.Fatalf("unexpected turns: %+v", got.Turns)
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	store := NewStore()
	session, _ := store.Create(context.Background())

	if err := store.Delete(context.Background(), session.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(context.Background(), session.ID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
	if err := store.Delete(context.Background(), session.ID); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found for double delete, got %v", err)
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	store := NewStore()
	session, _ := store.Create(context.Background())
	_ = store.AppendTurn(context.Background(), session.ID, domain.SessionTurn{Query: "original"})

	got, _ := store.Get(context.Background(), session.ID)
	got.Turns[0].Query = "mutated"
	got.CurrentContext = "mutated"

	again, _ := store.Get(context.Background(), session.ID)
	if again.Turns[0].Query != "original" || again.CurrentContext != "" {
		t.Fatalf("expected store isolated from caller mutation, got %+v", again)
	}
}
