package chunkstore

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectordb.sqlite")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteOpenCreatesTables(t *testing.T) {
	s := openTestSQLite(t)
	if _, err := s.ListLibraries(); err != nil {
		t.Fatalf("expected libraries table to exist, got %v", err)
	}
}

func TestSQLiteLibraryCRUDRoundTrip(t *testing.T) {
	s := openTestSQLite(t)

	lib, err := s.CreateLibrary(Library{
		ID:          "lib1",
		Name:        "books",
		IndexKind:   "linear",
		IndexParams: map[string]any{"multiplier": float64(3)},
		Metadata:    map[string]any{"owner": "alice"},
	})
	if err != nil {
		t.Fatalf("create library: %v", err)
	}
	if lib.Name != "books" || lib.IndexKind != "linear" {
		t.Fatalf("unexpected created library: %+v", lib)
	}
	if lib.Metadata["owner"] != "alice" {
		t.Fatalf("expected metadata round-trip, got %+v", lib.Metadata)
	}

	got, ok, err := s.GetLibrary("lib1")
	if err != nil || !ok {
		t.Fatalf("get library: ok=%v err=%v", ok, err)
	}
	if got.IndexParams["multiplier"] != float64(3) {
		t.Fatalf("expected index params round-trip, got %+v", got.IndexParams)
	}

	got.Name = "renamed"
	updated, err := s.UpdateLibrary(got)
	if err != nil {
		t.Fatalf("update library: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("expected renamed library, got %+v", updated)
	}

	libs, err := s.ListLibraries()
	if err != nil {
		t.Fatalf("list libraries: %v", err)
	}
	if len(libs) != 1 {
		t.Fatalf("expected 1 library, got %d", len(libs))
	}
}

func TestSQLiteCreateLibraryAlreadyExists(t *testing.T) {
	s := openTestSQLite(t)
	lib := Library{ID: "lib1", Name: "books", IndexKind: "linear"}
	if _, err := s.CreateLibrary(lib); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateLibrary(lib); err == nil {
		t.Fatal("expected already-exists error on duplicate create")
	}
}

func TestSQLiteUpdateLibraryMissingIsNotFound(t *testing.T) {
	s := openTestSQLite(t)
	if _, err := s.UpdateLibrary(Library{ID: "missing", Name: "x", IndexKind: "linear"}); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestSQLiteChunkCRUDRoundTrip(t *testing.T) {
	s := openTestSQLite(t)

	if _, err := s.CreateLibrary(Library{ID: "lib1", Name: "books", IndexKind: "linear"}); err != nil {
		t.Fatalf("create library: %v", err)
	}
	doc, err := s.CreateDocument(Document{ID: "doc1", LibraryID: "lib1"})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	embedding := []float32{0.1, 0.2, 0.3}
	chunk, err := s.CreateChunk(Chunk{
		ID:         "chunk1",
		LibraryID:  "lib1",
		DocumentID: doc.ID,
		Text:       "alpha",
		Embedding:  embedding,
		Metadata:   map[string]any{"tag": "x"},
	})
	if err != nil {
		t.Fatalf("create chunk: %v", err)
	}
	if len(chunk.Embedding) != len(embedding) {
		t.Fatalf("expected embedding round-trip, got %+v", chunk.Embedding)
	}
	for i := range embedding {
		if chunk.Embedding[i] != embedding[i] {
			t.Fatalf("expected embedding[%d]=%v, got %v", i, embedding[i], chunk.Embedding[i])
		}
	}
	if chunk.Metadata["tag"] != "x" {
		t.Fatalf("expected metadata round-trip, got %+v", chunk.Metadata)
	}

	got, ok, err := s.GetChunk("chunk1")
	if err != nil || !ok {
		t.Fatalf("get chunk: ok=%v err=%v", ok, err)
	}
	if got.Text != "alpha" {
		t.Fatalf("expected alpha, got %+v", got)
	}

	got.Text = "revised"
	got.Embedding = []float32{0.4, 0.5}
	updated, err := s.UpdateChunk(got)
	if err != nil {
		t.Fatalf("update chunk: %v", err)
	}
	if updated.Text != "revised" || len(updated.Embedding) != 2 {
		t.Fatalf("expected update applied, got %+v", updated)
	}

	chunks, err := s.GetChunks([]string{"chunk1", "missing"})
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "chunk1" {
		t.Fatalf("expected only the existing chunk returned, got %+v", chunks)
	}

	listed, err := s.ListChunksByDocument(doc.ID)
	if err != nil {
		t.Fatalf("list chunks by document: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "chunk1" {
		t.Fatalf("expected chunk attached to document, got %+v", listed)
	}

	if err := s.DeleteChunk("chunk1"); err != nil {
		t.Fatalf("delete chunk: %v", err)
	}
	if err := s.DeleteChunk("chunk1"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
	if _, ok, _ := s.GetChunk("chunk1"); ok {
		t.Fatal("expected chunk gone after delete")
	}
}

func TestSQLiteUpdateChunkMissingIsNotFound(t *testing.T) {
	s := openTestSQLite(t)
	if _, err := s.UpdateChunk(Chunk{ID: "missing", Embedding: []float32{1}}); err == nil {
		t.Fatal("expected not-found error")
	}
}

// Deleting a library cascades to its documents and chunks via ON DELETE
// CASCADE, since foreign keys are enabled on every connection.
func TestSQLiteDeleteLibraryCascadesViaForeignKeys(t *testing.T) {
	s := openTestSQLite(t)

	if _, err := s.CreateLibrary(Library{ID: "lib1", Name: "books", IndexKind: "linear"}); err != nil {
		t.Fatalf("create library: %v", err)
	}
	doc, err := s.CreateDocument(Document{ID: "doc1", LibraryID: "lib1"})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if _, err := s.CreateChunk(Chunk{ID: "chunk1", LibraryID: "lib1", DocumentID: doc.ID, Text: "alpha", Embedding: []float32{1, 2}}); err != nil {
		t.Fatalf("create chunk: %v", err)
	}

	if err := s.DeleteLibrary("lib1"); err != nil {
		t.Fatalf("delete library: %v", err)
	}

	if _, ok, _ := s.GetDocument(doc.ID); ok {
		t.Fatal("expected document cascade-deleted with its library")
	}
	if _, ok, _ := s.GetChunk("chunk1"); ok {
		t.Fatal("expected chunk cascade-deleted with its document")
	}

	// Idempotent: deleting the already-gone library is not an error.
	if err := s.DeleteLibrary("lib1"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

// Deleting a document cascades to its chunks via ON DELETE CASCADE without
// needing the library to be removed.
func TestSQLiteDeleteDocumentCascadesChunks(t *testing.T) {
	s := openTestSQLite(t)

	if _, err := s.CreateLibrary(Library{ID: "lib1", Name: "books", IndexKind: "linear"}); err != nil {
		t.Fatalf("create library: %v", err)
	}
	doc, err := s.CreateDocument(Document{ID: "doc1", LibraryID: "lib1"})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if _, err := s.CreateChunk(Chunk{ID: "chunk1", LibraryID: "lib1", DocumentID: doc.ID, Text: "alpha", Embedding: []float32{1, 2}}); err != nil {
		t.Fatalf("create chunk: %v", err)
	}

	if err := s.DeleteDocument(doc.ID); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	if _, ok, _ := s.GetChunk("chunk1"); ok {
		t.Fatal("expected chunk cascade-deleted with its document")
	}

	got, ok, err := s.GetLibrary("lib1")
	if err != nil || !ok {
		t.Fatalf("expected library to survive document delete: ok=%v err=%v", ok, err)
	}
	if len(got.DocumentIDs) != 0 {
		t.Fatalf("expected no remaining documents, got %+v", got.DocumentIDs)
	}
}
