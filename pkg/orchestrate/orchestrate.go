// Package orchestrate cascades chunk/document/library mutations into index
// mutations transactionally from the caller's view: creating a chunk also
// embeds and indexes it, and deleting a library cascades through its
// documents and chunks, removing each from its index along the way.
package orchestrate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gauravreddy08/vector-db/pkg/chunkstore"
	"github.com/gauravreddy08/vector-db/pkg/embedding"
	"github.com/gauravreddy08/vector-db/pkg/filter"
	"github.com/gauravreddy08/vector-db/pkg/logging"
	"github.com/gauravreddy08/vector-db/pkg/registry"
	"github.com/gauravreddy08/vector-db/pkg/verr"
)

// Service is the library-oriented API wiring the chunk store, index
// registry, and embedding provider together.
type Service struct {
	store    chunkstore.Store
	registry *registry.Registry
	embedder embedding.Provider
	log      logging.Logger
}

// New creates an orchestration Service.
func New(store chunkstore.Store, reg *registry.Registry, provider embedding.Provider, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, registry: reg, embedder: provider, log: log}
}

// CreateLibraryRequest describes a new library.
type CreateLibraryRequest struct {
	Name        string
	IndexKind   registry.Kind
	IndexParams map[string]any
	Metadata    map[string]any
}

// CreateLibrary creates exactly one index alongside the library record:
// every library is bound to exactly one index for its lifetime.
func (s *Service) CreateLibrary(req CreateLibraryRequest) (chunkstore.Library, error) {
	id := uuid.NewString()
	if err := s.registry.Create(id, req.IndexKind, req.IndexParams); err != nil {
		return chunkstore.Library{}, err
	}

	lib, err := s.store.CreateLibrary(chunkstore.Library{
		ID:          id,
		Name:        req.Name,
		IndexKind:   string(req.IndexKind),
		IndexParams: req.IndexParams,
		Metadata:    req.Metadata,
	})
	if err != nil {
		s.registry.Delete(id)
		return chunkstore.Library{}, err
	}
	s.log.Info("library created", "library_id", id, "index_kind", req.IndexKind)
	return lib, nil
}

// DeleteLibrary cascades: enumerate documents, delete each (which cascades
// chunk deletes and index removal), remove the index binding, delete the
// library record. Idempotent.
func (s *Service) DeleteLibrary(libraryID string) error {
	lib, ok, err := s.store.GetLibrary(libraryID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	for _, docID := range lib.DocumentIDs {
		if err := s.DeleteDocument(libraryID, docID); err != nil {
			return err
		}
	}

	s.registry.Delete(libraryID)
	if err := s.store.DeleteLibrary(libraryID); err != nil {
		return err
	}
	s.log.Info("library deleted", "library_id", libraryID, "documents_cascaded", len(lib.DocumentIDs))
	return nil
}

// CreateDocumentRequest describes a new document.
type CreateDocumentRequest struct {
	LibraryID string
	Metadata  map[string]any
}

// CreateDocument validates the library exists, then creates and attaches a
// document to it.
func (s *Service) CreateDocument(req CreateDocumentRequest) (chunkstore.Document, error) {
	if _, ok, err := s.store.GetLibrary(req.LibraryID); err != nil {
		return chunkstore.Document{}, err
	} else if !ok {
		return chunkstore.Document{}, verr.NotFound("orchestrate.CreateDocument", fmt.Errorf("library %q not found", req.LibraryID))
	}

	return s.store.CreateDocument(chunkstore.Document{
		ID:        uuid.NewString(),
		LibraryID: req.LibraryID,
		Metadata:  req.Metadata,
	})
}

// DeleteDocument cascades chunk deletes (each removing itself from the
// index), then deletes the document record. Idempotent.
func (s *Service) DeleteDocument(libraryID, documentID string) error {
	doc, ok, err := s.store.GetDocument(documentID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	for _, chunkID := range doc.ChunkIDs {
		if err := s.DeleteChunk(chunkID, libraryID, documentID); err != nil {
			return err
		}
	}

	return s.store.DeleteDocument(documentID)
}

// CreateChunkRequest describes a new chunk. A non-empty DocumentID names an
// existing document of the library to reuse; an empty one creates a new
// document with DocumentMetadata.
type CreateChunkRequest struct {
	LibraryID        string
	DocumentID       string
	DocumentMetadata map[string]any
	Text             string
	Metadata         map[string]any
}

// CreateChunk validates the library exists, creates or validates the
// target document, embeds the text with input_type=search_document,
// persists the chunk, attaches it to its document, and inserts it into the
// library's index with composite metadata
// {document_id, library_id, ...user_metadata}.
func (s *Service) CreateChunk(ctx context.Context, req CreateChunkRequest) (chunkstore.Chunk, error) {
	if req.Text == "" {
		return chunkstore.Chunk{}, verr.Validation("orchestrate.CreateChunk", fmt.Errorf("text must not be empty"))
	}

	lib, ok, err := s.store.GetLibrary(req.LibraryID)
	if err != nil {
		return chunkstore.Chunk{}, err
	}
	if !ok {
		return chunkstore.Chunk{}, verr.NotFound("orchestrate.CreateChunk", fmt.Errorf("library %q not found", req.LibraryID))
	}

	documentID := req.DocumentID
	if documentID == "" {
		doc, err := s.store.CreateDocument(chunkstore.Document{
			ID:        uuid.NewString(),
			LibraryID: lib.ID,
			Metadata:  req.DocumentMetadata,
		})
		if err != nil {
			return chunkstore.Chunk{}, err
		}
		documentID = doc.ID
	} else {
		doc, ok, err := s.store.GetDocument(documentID)
		if err != nil {
			return chunkstore.Chunk{}, err
		}
		if !ok || doc.LibraryID != req.LibraryID {
			return chunkstore.Chunk{}, verr.NotFound("orchestrate.CreateChunk", fmt.Errorf("document %q not found in library %q", documentID, req.LibraryID))
		}
	}

	vector, err := s.embedder.Embed(ctx, req.Text, embedding.SearchDocument)
	if err != nil {
		s.log.Warn("embedding failed", "library_id", req.LibraryID, "document_id", documentID, "err", err)
		return chunkstore.Chunk{}, verr.Embedding("orchestrate.CreateChunk", err)
	}

	chunkID := uuid.NewString()
	chunk, err := s.store.CreateChunk(chunkstore.Chunk{
		ID:         chunkID,
		LibraryID:  req.LibraryID,
		DocumentID: documentID,
		Text:       req.Text,
		Embedding:  vector,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return chunkstore.Chunk{}, err
	}

	if err := s.store.AttachChunkToDocument(documentID, chunkID); err != nil {
		return chunkstore.Chunk{}, err
	}

	idx, ok := s.registry.Get(req.LibraryID)
	if !ok {
		return chunkstore.Chunk{}, verr.Index("orchestrate.CreateChunk", fmt.Errorf("library %q has no index", req.LibraryID))
	}
	composite := compositeMetadata(documentID, req.LibraryID, req.Metadata)
	if err := idx.Add(chunkID, vector, composite); err != nil {
		return chunkstore.Chunk{}, err
	}

	return chunk, nil
}

// UpdateChunkRequest describes a chunk update; at least one of Text or
// Metadata must be set.
type UpdateChunkRequest struct {
	ChunkID   string
	LibraryID string
	Text      string
	Metadata  map[string]any
	HasText   bool
	HasMeta   bool
}

// UpdateChunk replaces text->embedding and/or metadata, then propagates the
// change into the library's index.
func (s *Service) UpdateChunk(ctx context.Context, req UpdateChunkRequest) (chunkstore.Chunk, error) {
	if !req.HasText && !req.HasMeta {
		return chunkstore.Chunk{}, verr.Validation("orchestrate.UpdateChunk", fmt.Errorf("nothing to update"))
	}

	chunk, ok, err := s.store.GetChunk(req.ChunkID)
	if err != nil {
		return chunkstore.Chunk{}, err
	}
	if !ok {
		return chunkstore.Chunk{}, verr.NotFound("orchestrate.UpdateChunk", fmt.Errorf("chunk %q not found", req.ChunkID))
	}

	if req.HasText {
		vector, err := s.embedder.Embed(ctx, req.Text, embedding.SearchDocument)
		if err != nil {
			return chunkstore.Chunk{}, verr.Embedding("orchestrate.UpdateChunk", err)
		}
		chunk.Text = req.Text
		chunk.Embedding = vector
	}
	if req.HasMeta {
		chunk.Metadata = req.Metadata
	}

	updated, err := s.store.UpdateChunk(chunk)
	if err != nil {
		return chunkstore.Chunk{}, err
	}

	if idx, ok := s.registry.Get(req.LibraryID); ok {
		composite := compositeMetadata(chunk.DocumentID, req.LibraryID, chunk.Metadata)
		if err := idx.Update(req.ChunkID, chunk.Embedding, composite); err != nil {
			return chunkstore.Chunk{}, err
		}
	}

	return updated, nil
}

// DeleteChunk removes a chunk from its document, the chunk store, and the
// library's index, using the (chunk_id, library_id, document_id) argument
// order consistent with the chunk service contract. Idempotent.
func (s *Service) DeleteChunk(chunkID, libraryID, documentID string) error {
	if idx, ok := s.registry.Get(libraryID); ok {
		idx.Delete(chunkID)
	}
	if err := s.store.DetachChunkFromDocument(documentID, chunkID); err != nil {
		return err
	}
	return s.store.DeleteChunk(chunkID)
}

// Build delegates to the registry's Build.
func (s *Service) Build(libraryID string) error {
	return s.registry.Build(libraryID)
}

// SearchResult pairs a rehydrated chunk with its similarity score.
type SearchResult struct {
	Chunk chunkstore.Chunk
	Score float64
}

// Search validates k, then delegates to the registry.
func (s *Service) Search(ctx context.Context, libraryID, queryText string, k int, f filter.Filter) ([]SearchResult, error) {
	if k < 1 {
		return nil, verr.Validation("orchestrate.Search", fmt.Errorf("k must be >= 1, got %d", k))
	}
	hits, err := s.registry.Search(ctx, libraryID, queryText, k, f)
	if err != nil {
		return nil, err
	}
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{Chunk: h.Chunk, Score: h.Score}
	}
	return out, nil
}

// compositeMetadata merges document_id and library_id ahead of user
// metadata.
func compositeMetadata(documentID, libraryID string, user map[string]any) map[string]any {
	out := map[string]any{
		"document_id": documentID,
		"library_id":  libraryID,
	}
	for k, v := range user {
		out[k] = v
	}
	return out
}
