package vindex

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"github.com/gauravreddy08/vector-db/pkg/filter"
	"github.com/gauravreddy08/vector-db/pkg/kmeans"
	"github.com/gauravreddy08/vector-db/pkg/simfn"
	"github.com/gauravreddy08/vector-db/pkg/verr"
)

// Defaults for IVF parameters.
const (
	DefaultIVFClusterRatio = 0.05
	DefaultIVFProbeRatio   = 0.2
	DefaultIVFMultiplier   = 3
	ivfMaxIters            = 25
	ivfTol                 = 1e-4
)

// IVFParams configures an IVF index. Negative inputs clamp to 0; zero values
// fall back to ratio-derived defaults.
type IVFParams struct {
	NClusters    int
	ClusterRatio float64
	NProbes      int
	ProbeRatio   float64
	Multiplier   int
}

func (p IVFParams) resolve() IVFParams {
	if p.NClusters < 0 {
		p.NClusters = 0
	}
	if p.NProbes < 0 {
		p.NProbes = 0
	}
	if p.ClusterRatio <= 0 {
		p.ClusterRatio = DefaultIVFClusterRatio
	}
	if p.ProbeRatio <= 0 {
		p.ProbeRatio = DefaultIVFProbeRatio
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultIVFMultiplier
	}
	return p
}

// IVF clusters vectors with cosine k-means and restricts search to the
// nearest few clusters ("probes"). Vectors added after the last Build sit
// in a pending set that is always scanned exhaustively, so newly added or
// updated vectors stay retrievable before the next Build.
type IVF struct {
	mu sync.RWMutex

	params IVFParams

	vectors  map[string][]float32
	metadata map[string]map[string]any
	pending  map[string][]float32

	centroids      [][]float32
	clusterMembers []map[string]struct{}
	probes         int
}

// NewIVF creates an empty IVF index.
func NewIVF(params IVFParams) *IVF {
	return &IVF{
		params:   params.resolve(),
		vectors:  make(map[string][]float32),
		metadata: make(map[string]map[string]any),
		pending:  make(map[string][]float32),
	}
}

// Add writes to pending and metadata; it never touches centroids or
// cluster members directly.
func (ix *IVF) Add(id string, vector []float32, metadata map[string]any) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.pending[id] = cloneVector(vector)
	ix.metadata[id] = cloneMetadata(metadata)
	return nil
}

// Build folds pending into vectors and rebuilds centroids/cluster members.
func (ix *IVF) Build() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for id, v := range ix.pending {
		ix.vectors[id] = v
	}
	ix.pending = make(map[string][]float32)

	if len(ix.vectors) == 0 {
		ix.centroids = nil
		ix.clusterMembers = nil
		ix.probes = 0
		return nil
	}

	ids := make([]string, 0, len(ix.vectors))
	for id := range ix.vectors {
		ids = append(ids, id)
	}
	// Sorted ids give k-means the same input order on every build.
	sort.Strings(ids)
	vecs := make([][]float32, len(ids))
	for i, id := range ids {
		vecs[i] = ix.vectors[id]
	}

	n := len(vecs)
	k := ix.params.NClusters
	if k == 0 {
		k = int(round(float64(n) * ix.params.ClusterRatio))
	}
	k = clampRange(k, 1, n)

	result, err := kmeans.Cluster(vecs, k, ivfMaxIters, ivfTol)
	if err != nil {
		return verr.Index("vindex.IVF.Build", err)
	}

	ix.centroids = result.Centroids
	ix.clusterMembers = make([]map[string]struct{}, len(result.Centroids))
	for i := range ix.clusterMembers {
		ix.clusterMembers[i] = make(map[string]struct{})
	}
	for i, label := range result.Labels {
		ix.clusterMembers[label][ids[i]] = struct{}{}
	}

	probes := ix.params.NProbes
	if probes == 0 {
		probes = int(round(float64(len(ix.centroids)) * ix.params.ProbeRatio))
	}
	ix.probes = clampRange(probes, 1, len(ix.centroids))

	return nil
}

func (ix *IVF) Search(query []float32, k int, f filter.Filter) ([]Result, error) {
	if k < 1 {
		return nil, verr.Validation("vindex.IVF.Search", fmt.Errorf("k must be >= 1, got %d", k))
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hasFilter := len(f) > 0
	fetch := k
	if hasFilter {
		fetch = k * ix.params.Multiplier
	}

	var candidateIDs map[string]struct{}
	if len(ix.centroids) == 0 {
		candidateIDs = make(map[string]struct{}, len(ix.vectors)+len(ix.pending))
		for id := range ix.vectors {
			candidateIDs[id] = struct{}{}
		}
		for id := range ix.pending {
			candidateIDs[id] = struct{}{}
		}
	} else {
		candidateIDs = make(map[string]struct{}, len(ix.pending))
		for id := range ix.pending {
			candidateIDs[id] = struct{}{}
		}

		type rankedCentroid struct {
			idx   int
			score float64
		}
		ranked := make([]rankedCentroid, len(ix.centroids))
		for i, c := range ix.centroids {
			ranked[i] = rankedCentroid{idx: i, score: simfn.Cosine(query, c)}
		}
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

		visited := 0
		for _, rc := range ranked {
			for id := range ix.clusterMembers[rc.idx] {
				candidateIDs[id] = struct{}{}
			}
			visited++
			if len(candidateIDs) >= fetch && visited >= ix.probes {
				break
			}
		}
	}

	h := &resultHeap{}
	heap.Init(h)
	for id := range candidateIDs {
		v, ok := ix.pending[id]
		if !ok {
			v = ix.vectors[id]
		}
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
		if hasFilter && !filter.Match(f, ix.metadata[c.ID]) {
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

// Update removes id from vectors and its cluster membership (if any), then
// writes the new embedding into pending — invisible to clustered search
// paths until the next Build, but visible via pending.
func (ix *IVF) Update(id string, vector []float32, metadata map[string]any) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, inVectors := ix.vectors[id]
	_, inPending := ix.pending[id]
	if !inVectors && !inPending {
		return verr.NotFound("vindex.IVF.Update", fmt.Errorf("unknown id %q", id))
	}

	delete(ix.vectors, id)
	for _, members := range ix.clusterMembers {
		delete(members, id)
	}
	ix.pending[id] = cloneVector(vector)
	ix.metadata[id] = cloneMetadata(metadata)
	return nil
}

func (ix *IVF) Delete(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, inVectors := ix.vectors[id]
	_, inPending := ix.pending[id]
	if !inVectors && !inPending {
		return false
	}

	delete(ix.pending, id)
	delete(ix.vectors, id)
	for _, members := range ix.clusterMembers {
		delete(members, id)
	}
	delete(ix.metadata, id)
	return true
}

func (ix *IVF) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors) + len(ix.pending)
}

func round(f float64) float64 {
	if f < 0 {
		return -round(-f)
	}
	i := int64(f)
	if f-float64(i) >= 0.5 {
		i++
	}
	return float64(i)
}

func clampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
