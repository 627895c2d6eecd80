package chunkstore

import "testing"

func TestMemoryCreateLibraryAlreadyExists(t *testing.T) {
	m := NewMemory()
	lib := Library{ID: "lib1", Name: "books", IndexKind: "linear"}
	if _, err := m.CreateLibrary(lib); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.CreateLibrary(lib); err == nil {
		t.Fatal("expected already-exists error on duplicate create")
	}
}

func TestMemoryDeleteLibraryIdempotent(t *testing.T) {
	m := NewMemory()
	if err := m.DeleteLibrary("missing"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestMemoryDocumentCascadeUpdatesLibrary(t *testing.T) {
	m := NewMemory()
	lib, err := m.CreateLibrary(Library{ID: "lib1", Name: "books", IndexKind: "linear"})
	if err != nil {
		t.Fatal(err)
	}

	doc, err := m.CreateDocument(Document{ID: "doc1", LibraryID: lib.ID})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	got, ok, err := m.GetLibrary(lib.ID)
	if err != nil || !ok {
		t.Fatalf("get library: %v %v", ok, err)
	}
	if len(got.DocumentIDs) != 1 || got.DocumentIDs[0] != doc.ID {
		t.Fatalf("expected library to list attached document, got %+v", got.DocumentIDs)
	}

	if err := m.DeleteDocument(doc.ID); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	got, _, _ = m.GetLibrary(lib.ID)
	if len(got.DocumentIDs) != 0 {
		t.Fatalf("expected document id removed from library, got %+v", got.DocumentIDs)
	}
}

func TestMemoryChunkAttachAndList(t *testing.T) {
	m := NewMemory()
	if _, err := m.CreateLibrary(Library{ID: "lib1", Name: "books", IndexKind: "linear"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateDocument(Document{ID: "doc1", LibraryID: "lib1"}); err != nil {
		t.Fatal(err)
	}

	c, err := m.CreateChunk(Chunk{ID: "c1", LibraryID: "lib1", DocumentID: "doc1", Text: "alpha", Embedding: []float32{1, 0}})
	if err != nil {
		t.Fatalf("create chunk: %v", err)
	}
	if err := m.AttachChunkToDocument("doc1", c.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	chunks, err := m.ListChunksByDocument("doc1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "c1" {
		t.Fatalf("expected one attached chunk, got %+v", chunks)
	}
}

func TestMemoryReturnsDeepCopies(t *testing.T) {
	m := NewMemory()
	lib, err := m.CreateLibrary(Library{ID: "lib1", Name: "books", IndexKind: "linear", Metadata: map[string]any{"k": "v"}})
	if err != nil {
		t.Fatal(err)
	}

	lib.Metadata["k"] = "mutated"
	got, _, _ := m.GetLibrary("lib1")
	if got.Metadata["k"] != "v" {
		t.Fatal("caller mutation of returned library leaked into stored state")
	}
}
