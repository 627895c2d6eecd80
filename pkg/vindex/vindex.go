// Package vindex implements the three interchangeable index kinds — linear,
// IVF, and NSW — behind one capability set. Each kind owns a single
// sync.RWMutex guarding its entire mutable state.
package vindex

import "github.com/gauravreddy08/vector-db/pkg/filter"

// Result is one scored hit from a search, ordered descending by Score.
type Result struct {
	ID    string
	Score float64
}

// Index is the capability set every index kind implements, dispatched
// statically through this interface rather than through a runtime class
// graph.
type Index interface {
	// Add stores a new chunk's embedding and metadata.
	Add(id string, vector []float32, metadata map[string]any) error
	// Build folds any pending mutations into the index's queryable
	// structure. It is a no-op returning success for kinds that have
	// nothing to build.
	Build() error
	// Search returns up to k results ordered by descending score, each
	// satisfying filter.
	Search(query []float32, k int, f filter.Filter) ([]Result, error)
	// Update replaces an existing chunk's embedding and metadata. It
	// fails if id is unknown.
	Update(id string, vector []float32, metadata map[string]any) error
	// Delete removes a chunk. The bool reports whether the id existed.
	Delete(id string) bool
	// Len reports the number of chunks currently visible to search
	// (vectors plus any kind-specific pending set).
	Len() int
}
