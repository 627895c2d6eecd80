// Package registry binds each library to exactly one index instance and
// dispatches build/search calls to it.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/gauravreddy08/vector-db/pkg/chunkstore"
	"github.com/gauravreddy08/vector-db/pkg/embedding"
	"github.com/gauravreddy08/vector-db/pkg/filter"
	"github.com/gauravreddy08/vector-db/pkg/vindex"
	"github.com/gauravreddy08/vector-db/pkg/verr"
)

// Kind identifies which vindex.Index implementation backs a library.
type Kind string

const (
	KindLinear Kind = "linear"
	KindIVF    Kind = "ivf"
	KindNSW    Kind = "nsw"
)

// Registry owns the library id -> index instance mapping behind its own
// lock, separate from any index's lock: the registry lock is always
// acquired and released before any index lock.
type Registry struct {
	mu       sync.RWMutex
	indexes  map[string]vindex.Index
	chunks   chunkstore.Store
	embedder embedding.Provider
}

// New creates an empty registry backed by store for chunk rehydration and
// provider for query-time embedding.
func New(store chunkstore.Store, provider embedding.Provider) *Registry {
	return &Registry{
		indexes:  make(map[string]vindex.Index),
		chunks:   store,
		embedder: provider,
	}
}

// Create builds a new index instance of kind for libraryID from params.
// Fails with already-exists if libraryID is already bound.
func (r *Registry) Create(libraryID string, kind Kind, params map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indexes[libraryID]; exists {
		return verr.AlreadyExists("registry.Create", fmt.Errorf("library %q already has an index", libraryID))
	}

	idx, err := newIndex(kind, params)
	if err != nil {
		return err
	}
	r.indexes[libraryID] = idx
	return nil
}

// Get returns the index instance bound to libraryID, or ok=false if none.
func (r *Registry) Get(libraryID string) (vindex.Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexes[libraryID]
	return idx, ok
}

// Delete removes libraryID's index binding. Idempotent.
func (r *Registry) Delete(libraryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, libraryID)
}

// Build delegates to the bound index's Build. Fails with not-found if
// libraryID has no index.
func (r *Registry) Build(libraryID string) error {
	idx, ok := r.Get(libraryID)
	if !ok {
		return verr.NotFound("registry.Build", fmt.Errorf("library %q has no index", libraryID))
	}
	return idx.Build()
}

// SearchHit pairs a rehydrated chunk with its similarity score.
type SearchHit struct {
	Chunk chunkstore.Chunk
	Score float64
}

// Search embeds queryText with input_type=search_query, calls the bound
// index, and rehydrates matching chunk records from the chunk store.
// The embedding call is issued with no index lock held.
func (r *Registry) Search(ctx context.Context, libraryID, queryText string, k int, f filter.Filter) ([]SearchHit, error) {
	idx, ok := r.Get(libraryID)
	if !ok {
		return nil, verr.Index("registry.Search", fmt.Errorf("library %q has no index", libraryID))
	}

	queryVector, err := r.embedder.Embed(ctx, queryText, embedding.SearchQuery)
	if err != nil {
		return nil, verr.Embedding("registry.Search", err)
	}

	results, err := idx.Search(queryVector, k, f)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	chunks, err := r.chunks.GetChunks(ids)
	if err != nil {
		return nil, fmt.Errorf("registry: rehydrate chunks: %w", err)
	}
	byID := make(map[string]chunkstore.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	hits := make([]SearchHit, 0, len(results))
	for _, res := range results {
		if c, ok := byID[res.ID]; ok {
			hits = append(hits, SearchHit{Chunk: c, Score: res.Score})
		}
	}
	return hits, nil
}

// newIndex constructs the vindex.Index for kind. Unknown parameter keys
// are ignored and negative numerics are clamped to 0.
func newIndex(kind Kind, params map[string]any) (vindex.Index, error) {
	switch kind {
	case KindLinear:
		return vindex.NewLinear(vindex.LinearParams{
			Multiplier: intParam(params, "multiplier"),
		}), nil
	case KindIVF:
		return vindex.NewIVF(vindex.IVFParams{
			NClusters:    intParam(params, "n_clusters"),
			ClusterRatio: floatParam(params, "cluster_ratio"),
			NProbes:      intParam(params, "n_probes"),
			ProbeRatio:   floatParam(params, "probe_ratio"),
			Multiplier:   intParam(params, "multiplier"),
		}), nil
	case KindNSW:
		return vindex.NewNSW(vindex.NSWParams{
			M:              intParam(params, "M"),
			EfConstruction: intParam(params, "efConstruction"),
			EfSearch:       intParam(params, "efSearch"),
			Multiplier:     intParam(params, "multiplier"),
		}), nil
	default:
		return nil, verr.Index("registry.Create", fmt.Errorf("unknown index kind %q", kind))
	}
}

func intParam(params map[string]any, key string) int {
	v, ok := params[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return clampNonNegative(n)
	case int64:
		return clampNonNegative(int(n))
	case float64:
		return clampNonNegative(int(n))
	default:
		return 0
	}
}

func floatParam(params map[string]any, key string) float64 {
	v, ok := params[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return clampNonNegativeFloat(n)
	case int:
		return clampNonNegativeFloat(float64(n))
	default:
		return 0
	}
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clampNonNegativeFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
