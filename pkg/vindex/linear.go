package vindex

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"github.com/gauravreddy08/vector-db/pkg/filter"
	"github.com/gauravreddy08/vector-db/pkg/simfn"
	"github.com/gauravreddy08/vector-db/pkg/verr"
)

// DefaultLinearMultiplier is applied to k when a filter is present, to
// compensate for filter-rejected candidates.
const DefaultLinearMultiplier = 3

// LinearParams configures a Linear index. Zero value resolves to defaults.
type LinearParams struct {
	Multiplier int
}

func (p LinearParams) resolve() LinearParams {
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultLinearMultiplier
	}
	return p
}

// Linear is the exhaustive, brute-force index: every search scans every
// stored vector.
type Linear struct {
	mu       sync.RWMutex
	vectors  map[string][]float32
	metadata map[string]map[string]any
	params   LinearParams
}

// NewLinear creates an empty Linear index.
func NewLinear(params LinearParams) *Linear {
	return &Linear{
		vectors:  make(map[string][]float32),
		metadata: make(map[string]map[string]any),
		params:   params.resolve(),
	}
}

func (l *Linear) Add(id string, vector []float32, metadata map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vectors[id] = cloneVector(vector)
	l.metadata[id] = cloneMetadata(metadata)
	return nil
}

// Build is a no-op for Linear: there is nothing to fold or rebuild.
func (l *Linear) Build() error { return nil }

func (l *Linear) Search(query []float32, k int, f filter.Filter) ([]Result, error) {
	if k < 1 {
		return nil, verr.Validation("vindex.Linear.Search", fmt.Errorf("k must be >= 1, got %d", k))
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	hasFilter := len(f) > 0
	fetch := k
	if hasFilter {
		fetch = k * l.params.Multiplier
	}

	h := &resultHeap{}
	heap.Init(h)
	for id, v := range l.vectors {
		score := simfn.Cosine(query, v)
		if h.Len() < fetch {
			heap.Push(h, Result{ID: id, Score: score})
		} else if h.Len() > 0 && score > (*h)[0].Score {
			heap.Pop(h)
			heap.Push(h, Result{ID: id, Score: score})
		}
	}

	candidates := make([]Result, h.Len())
	for i := len(candidates) - 1; i >= 0; i-- {
		candidates[i] = heap.Pop(h).(Result)
	}

	out := make([]Result, 0, k)
	for _, c := range candidates {
		if hasFilter && !filter.Match(f, l.metadata[c.ID]) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (l *Linear) Update(id string, vector []float32, metadata map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.vectors[id]; !ok {
		return verr.NotFound("vindex.Linear.Update", fmt.Errorf("unknown id %q", id))
	}
	l.vectors[id] = cloneVector(vector)
	l.metadata[id] = cloneMetadata(metadata)
	return nil
}

func (l *Linear) Delete(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.vectors[id]; !ok {
		return false
	}
	delete(l.vectors, id)
	delete(l.metadata, id)
	return true
}

func (l *Linear) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.vectors)
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// resultHeap is a bounded min-heap over Result by Score, used to keep the
// top-k (or top-fetch) candidates during a scan: once full, the lowest
// score is popped whenever a better candidate arrives.
type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
