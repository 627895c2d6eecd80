package vindex

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/gauravreddy08/vector-db/pkg/filter"
	"github.com/gauravreddy08/vector-db/pkg/simfn"
	"github.com/gauravreddy08/vector-db/pkg/verr"
)

// Defaults for NSW parameters.
const (
	DefaultNSWM              = 8
	DefaultNSWEfConstruction = 32
	DefaultNSWEfSearch       = 64
	DefaultNSWMultiplier     = 3
)

// NSWParams configures a NSW index. All numeric fields clamp to >= 1.
type NSWParams struct {
	M              int
	EfConstruction int
	EfSearch       int
	Multiplier     int
}

func (p NSWParams) resolve() NSWParams {
	if p.M <= 0 {
		p.M = DefaultNSWM
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = DefaultNSWEfConstruction
	}
	if p.EfSearch <= 0 {
		p.EfSearch = DefaultNSWEfSearch
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultNSWMultiplier
	}
	return p
}

// NSW is a single-layer navigable small world graph: each node keeps a
// bounded set of neighbours, and search is a greedy beam walk from the
// entry point.
type NSW struct {
	mu sync.RWMutex

	params NSWParams

	vectors    map[string][]float32
	metadata   map[string]map[string]any
	graph      map[string]map[string]struct{}
	entryPoint *string
}

// NewNSW creates an empty NSW index.
func NewNSW(params NSWParams) *NSW {
	return &NSW{
		params:   params.resolve(),
		vectors:  make(map[string][]float32),
		metadata: make(map[string]map[string]any),
		graph:    make(map[string]map[string]struct{}),
	}
}

func (n *NSW) Add(id string, vector []float32, metadata map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.vectors[id] = cloneVector(vector)
	n.metadata[id] = cloneMetadata(metadata)

	if n.entryPoint == nil {
		n.graph[id] = make(map[string]struct{})
		ep := id
		n.entryPoint = &ep
		return nil
	}

	results := n.beam(vector, n.params.EfConstruction, []string{*n.entryPoint})
	n.graph[id] = make(map[string]struct{})
	n.connect(id, neighboursFrom(results, id, n.params.M))
	return nil
}

// Build is a no-op for NSW: every Add already wires the node into the graph.
func (n *NSW) Build() error { return nil }

func (n *NSW) Search(query []float32, k int, f filter.Filter) ([]Result, error) {
	if k < 1 {
		return nil, verr.Validation("vindex.NSW.Search", fmt.Errorf("k must be >= 1, got %d", k))
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.entryPoint == nil {
		return []Result{}, nil
	}

	hasFilter := len(f) > 0
	fetch := k
	if hasFilter {
		fetch = k * n.params.Multiplier
	}
	ef := n.params.EfSearch
	if fetch > ef {
		ef = fetch
	}

	ranked := n.beam(query, ef, []string{*n.entryPoint})

	out := make([]Result, 0, k)
	for _, r := range ranked {
		if hasFilter && !filter.Match(f, n.metadata[r.ID]) {
			continue
		}
		out = append(out, r)
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (n *NSW) Update(id string, vector []float32, metadata map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.vectors[id]; !ok {
		return verr.NotFound("vindex.NSW.Update", fmt.Errorf("unknown id %q", id))
	}

	for nb := range n.graph[id] {
		delete(n.graph[nb], id)
	}
	n.graph[id] = make(map[string]struct{})

	n.vectors[id] = cloneVector(vector)
	n.metadata[id] = cloneMetadata(metadata)

	if n.entryPoint == nil {
		ep := id
		n.entryPoint = &ep
	}

	results := n.beam(vector, n.params.EfConstruction, []string{*n.entryPoint})
	n.connect(id, neighboursFrom(results, id, n.params.M))
	return nil
}

func (n *NSW) Delete(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.vectors[id]; !ok {
		return false
	}

	neighbours := make([]string, 0, len(n.graph[id]))
	for nb := range n.graph[id] {
		neighbours = append(neighbours, nb)
	}
	for _, nb := range neighbours {
		delete(n.graph[nb], id)
	}
	delete(n.graph, id)
	delete(n.vectors, id)
	delete(n.metadata, id)

	if n.entryPoint != nil && *n.entryPoint == id {
		n.entryPoint = nil
		for other := range n.vectors {
			ep := other
			n.entryPoint = &ep
			break
		}
	}

	// Neighbour repair: reconnect every surviving former neighbour so no
	// component is orphaned after removing a hub. A neighbour that is now
	// the entry point keeps its remaining edges, since every other repair
	// searches from it.
	for _, u := range neighbours {
		if _, alive := n.vectors[u]; !alive {
			continue
		}
		if n.entryPoint == nil || *n.entryPoint == u {
			continue
		}
		for nb := range n.graph[u] {
			delete(n.graph[nb], u)
		}
		n.graph[u] = make(map[string]struct{})

		results := n.beam(n.vectors[u], n.params.EfConstruction, []string{*n.entryPoint})
		n.connect(u, neighboursFrom(results, u, n.params.M))
	}

	return true
}

func (n *NSW) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.vectors)
}

// connect adds bidirectional edges between id and each of neighbours.
func (n *NSW) connect(id string, neighbours []string) {
	for _, nb := range neighbours {
		n.graph[id][nb] = struct{}{}
		if n.graph[nb] == nil {
			n.graph[nb] = make(map[string]struct{})
		}
		n.graph[nb][id] = struct{}{}
	}
}

// neighboursFrom takes the top M distinct ids from ranked results, excluding
// self.
func neighboursFrom(ranked []Result, self string, m int) []string {
	out := make([]string, 0, m)
	for _, r := range ranked {
		if r.ID == self {
			continue
		}
		out = append(out, r.ID)
		if len(out) >= m {
			break
		}
	}
	return out
}

// beam runs best-first beam search from starts, bounded to width ef,
// returning up to ef results ordered descending by similarity to query.
func (n *NSW) beam(query []float32, ef int, starts []string) []Result {
	candidates := &maxScoreHeap{}
	heap.Init(candidates)
	results := &minScoreHeap{}
	heap.Init(results)

	visited := make(map[string]struct{})
	enqueued := make(map[string]struct{})

	for _, s := range starts {
		v, ok := n.vectors[s]
		if !ok {
			continue
		}
		if _, ok := enqueued[s]; ok {
			continue
		}
		heap.Push(candidates, Result{ID: s, Score: simfn.Cosine(query, v)})
		enqueued[s] = struct{}{}
	}

	for candidates.Len() > 0 {
		cur := heap.Pop(candidates).(Result)
		if _, ok := visited[cur.ID]; ok {
			continue
		}
		visited[cur.ID] = struct{}{}

		heap.Push(results, cur)
		if results.Len() > ef {
			heap.Pop(results)
		}

		if results.Len() >= ef && cur.Score < (*results)[0].Score {
			break
		}

		for neighbour := range n.graph[cur.ID] {
			if _, ok := visited[neighbour]; ok {
				continue
			}
			if _, ok := enqueued[neighbour]; ok {
				continue
			}
			nv, ok := n.vectors[neighbour]
			if !ok {
				continue
			}
			heap.Push(candidates, Result{ID: neighbour, Score: simfn.Cosine(query, nv)})
			enqueued[neighbour] = struct{}{}
		}
	}

	out := make([]Result, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(Result)
	}
	return out
}

// maxScoreHeap pops the highest-scoring Result first.
type maxScoreHeap []Result

func (h maxScoreHeap) Len() int            { return len(h) }
func (h maxScoreHeap) Less(i, j int) bool  { return h[i].Score > h[j].Score }
func (h maxScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxScoreHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }
func (h *maxScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// minScoreHeap pops the lowest-scoring Result first, so its root is always
// the worst member of a bounded result set.
type minScoreHeap []Result

func (h minScoreHeap) Len() int            { return len(h) }
func (h minScoreHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h minScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minScoreHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }
func (h *minScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
