package chunkstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/gauravreddy08/vector-db/pkg/verr"
)

// Memory is the default in-memory Store implementation, thread-safe via a
// single mutex guarding three id-keyed maps.
type Memory struct {
	mu        sync.RWMutex
	libraries map[string]Library
	documents map[string]Document
	chunks    map[string]Chunk
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		libraries: make(map[string]Library),
		documents: make(map[string]Document),
		chunks:    make(map[string]Chunk),
	}
}

func (m *Memory) CreateLibrary(lib Library) (Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.libraries[lib.ID]; exists {
		return Library{}, verr.AlreadyExists("chunkstore.CreateLibrary", fmt.Errorf("library %q already exists", lib.ID))
	}
	now := time.Now()
	lib.CreatedAt, lib.UpdatedAt = now, now
	m.libraries[lib.ID] = cloneLibrary(lib)
	return cloneLibrary(lib), nil
}

func (m *Memory) GetLibrary(id string) (Library, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lib, ok := m.libraries[id]
	if !ok {
		return Library{}, false, nil
	}
	return cloneLibrary(lib), true, nil
}

func (m *Memory) ListLibraries() ([]Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Library, 0, len(m.libraries))
	for _, lib := range m.libraries {
		out = append(out, cloneLibrary(lib))
	}
	return out, nil
}

func (m *Memory) UpdateLibrary(lib Library) (Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.libraries[lib.ID]
	if !ok {
		return Library{}, verr.NotFound("chunkstore.UpdateLibrary", fmt.Errorf("library %q not found", lib.ID))
	}
	lib.CreatedAt = existing.CreatedAt
	lib.UpdatedAt = time.Now()
	m.libraries[lib.ID] = cloneLibrary(lib)
	return cloneLibrary(lib), nil
}

// DeleteLibrary is idempotent: deleting a missing library is not an error.
func (m *Memory) DeleteLibrary(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.libraries, id)
	return nil
}

func (m *Memory) CreateDocument(doc Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	if doc.ChunkIDs == nil {
		doc.ChunkIDs = []string{}
	}
	m.documents[doc.ID] = cloneDocument(doc)

	if lib, ok := m.libraries[doc.LibraryID]; ok {
		lib.DocumentIDs = append(lib.DocumentIDs, doc.ID)
		lib.UpdatedAt = now
		m.libraries[doc.LibraryID] = lib
	}
	return cloneDocument(doc), nil
}

func (m *Memory) GetDocument(id string) (Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[id]
	if !ok {
		return Document{}, false, nil
	}
	return cloneDocument(doc), true, nil
}

// DeleteDocument is idempotent.
func (m *Memory) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[id]
	if !ok {
		return nil
	}
	delete(m.documents, id)

	if lib, ok := m.libraries[doc.LibraryID]; ok {
		lib.DocumentIDs = removeString(lib.DocumentIDs, id)
		lib.UpdatedAt = time.Now()
		m.libraries[doc.LibraryID] = lib
	}
	return nil
}

func (m *Memory) AttachChunkToDocument(documentID, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return verr.NotFound("chunkstore.AttachChunkToDocument", fmt.Errorf("document %q not found", documentID))
	}
	doc.ChunkIDs = append(doc.ChunkIDs, chunkID)
	doc.UpdatedAt = time.Now()
	m.documents[documentID] = doc
	return nil
}

func (m *Memory) DetachChunkFromDocument(documentID, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return nil
	}
	doc.ChunkIDs = removeString(doc.ChunkIDs, chunkID)
	doc.UpdatedAt = time.Now()
	m.documents[documentID] = doc
	return nil
}

func (m *Memory) CreateChunk(c Chunk) (Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.chunks[c.ID] = cloneChunk(c)
	return cloneChunk(c), nil
}

func (m *Memory) GetChunk(id string) (Chunk, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.chunks[id]
	if !ok {
		return Chunk{}, false, nil
	}
	return cloneChunk(c), true, nil
}

func (m *Memory) GetChunks(ids []string) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			out = append(out, cloneChunk(c))
		}
	}
	return out, nil
}

func (m *Memory) UpdateChunk(c Chunk) (Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.chunks[c.ID]
	if !ok {
		return Chunk{}, verr.NotFound("chunkstore.UpdateChunk", fmt.Errorf("chunk %q not found", c.ID))
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	m.chunks[c.ID] = cloneChunk(c)
	return cloneChunk(c), nil
}

// DeleteChunk is idempotent.
func (m *Memory) DeleteChunk(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, id)
	return nil
}

func (m *Memory) ListChunksByDocument(documentID string) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[documentID]
	if !ok {
		return nil, nil
	}
	out := make([]Chunk, 0, len(doc.ChunkIDs))
	for _, id := range doc.ChunkIDs {
		if c, ok := m.chunks[id]; ok {
			out = append(out, cloneChunk(c))
		}
	}
	return out, nil
}

func removeString(s []string, target string) []string {
	out := s[:0:0]
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func cloneChunk(c Chunk) Chunk {
	c.Embedding = append([]float32(nil), c.Embedding...)
	c.Metadata = cloneAnyMap(c.Metadata)
	return c
}

func cloneDocument(d Document) Document {
	d.ChunkIDs = append([]string(nil), d.ChunkIDs...)
	d.Metadata = cloneAnyMap(d.Metadata)
	return d
}

func cloneLibrary(l Library) Library {
	l.DocumentIDs = append([]string(nil), l.DocumentIDs...)
	l.Metadata = cloneAnyMap(l.Metadata)
	l.IndexParams = cloneAnyMap(l.IndexParams)
	return l
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case []any:
			out[k] = append([]any(nil), val...)
		case map[string]any:
			out[k] = cloneAnyMap(val)
		default:
			out[k] = v
		}
	}
	return out
}
