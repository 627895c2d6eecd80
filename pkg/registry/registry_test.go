package registry

import (
	"context"
	"testing"

	"github.com/gauravreddy08/vector-db/pkg/chunkstore"
	"github.com/gauravreddy08/vector-db/pkg/embedding"
)

func newTestRegistry() (*Registry, chunkstore.Store) {
	store := chunkstore.NewMemory()
	provider := embedding.NewDeterministicProvider(8)
	return New(store, provider), store
}

func TestCreateAlreadyExists(t *testing.T) {
	r, _ := newTestRegistry()
	if err := r.Create("lib1", KindLinear, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Create("lib1", KindLinear, nil); err == nil {
		t.Fatal("expected already-exists error")
	}
}

func TestSearchAgainstMissingIndexIsIndexError(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.Search(context.Background(), "missing", "query", 1, nil)
	if err == nil {
		t.Fatal("expected index error for missing library")
	}
}

func TestBuildUnknownLibraryFails(t *testing.T) {
	r, _ := newTestRegistry()
	if err := r.Build("missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestSearchRehydratesChunksFromStore(t *testing.T) {
	r, store := newTestRegistry()
	if err := r.Create("lib1", KindLinear, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	idx, _ := r.Get("lib1")
	provider := embedding.NewDeterministicProvider(8)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	for _, text := range texts {
		vec, err := provider.Embed(ctx, text, embedding.SearchDocument)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := store.CreateChunk(chunkstore.Chunk{ID: text, LibraryID: "lib1", Text: text, Embedding: vec}); err != nil {
			t.Fatalf("create chunk: %v", err)
		}
		if err := idx.Add(text, vec, nil); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	hits, err := r.Search(ctx, "lib1", "alpha", 1, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.ID != "alpha" {
		t.Fatalf("expected alpha as top hit, got %+v", hits)
	}
}

func TestIndexParamsIgnoreUnknownKeysAndClampNegatives(t *testing.T) {
	r, _ := newTestRegistry()
	if err := r.Create("lib1", KindIVF, map[string]any{
		"n_clusters": -5,
		"unknown":    "ignored",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := r.Get("lib1"); !ok {
		t.Fatal("expected index to be created despite unknown/negative params")
	}
}
