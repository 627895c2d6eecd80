package vindex

import (
	"fmt"
	"testing"
)

func seedTextVectors(n int) map[string][]float32 {
	out := make(map[string][]float32, n)
	for i := 0; i < n; i++ {
		angle := float64(i)
		out[fmt.Sprintf("t%d", i)] = []float32{float32(angle), 1, float32(i % 3)}
	}
	return out
}

func TestIVFSearchBeforeBuildUsesExhaustiveFallback(t *testing.T) {
	idx := NewIVF(IVFParams{})
	vectors := seedTextVectors(10)
	for id, v := range vectors {
		if err := idx.Add(id, v, nil); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	results, err := idx.Search(vectors["t5"], 3, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 || len(results) > 3 {
		t.Fatalf("expected between 1 and 3 results before build, got %d", len(results))
	}
}

func TestIVFBuildThenSearchFindsExactMatch(t *testing.T) {
	idx := NewIVF(IVFParams{})
	vectors := seedTextVectors(10)
	for id, v := range vectors {
		if err := idx.Add(id, v, nil); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := idx.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	results, err := idx.Search(vectors["t5"], 3, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 || results[0].ID != "t5" {
		t.Fatalf("expected t5 first after build, got %+v", results)
	}
}

func TestIVFUpdateWithoutRebuildStaysRetrievable(t *testing.T) {
	idx := NewIVF(IVFParams{})
	if err := idx.Add("only", []float32{1, 0, 0}, nil); err != nil {
		t.Fatal(err)
	}
	if err := idx.Build(); err != nil {
		t.Fatal(err)
	}

	updated := []float32{0, 1, 0}
	if err := idx.Update("only", updated, nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	results, err := idx.Search(updated, 1, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "only" {
		t.Fatalf("expected updated chunk retrievable via pending, got %+v", results)
	}

	if err := idx.Build(); err != nil {
		t.Fatalf("second build: %v", err)
	}
	results, err = idx.Search(updated, 1, nil)
	if err != nil {
		t.Fatalf("search after rebuild: %v", err)
	}
	if len(results) != 1 || results[0].ID != "only" {
		t.Fatalf("expected updated chunk retrievable after rebuild, got %+v", results)
	}
}

func TestIVFBuildMonotonicity(t *testing.T) {
	idx := NewIVF(IVFParams{NClusters: 2})
	vectors := seedTextVectors(10)
	for id, v := range vectors {
		if err := idx.Add(id, v, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Build(); err != nil {
		t.Fatal(err)
	}
	first := snapshotMembers(idx)

	if err := idx.Build(); err != nil {
		t.Fatal(err)
	}
	second := snapshotMembers(idx)

	if len(first) != len(second) {
		t.Fatalf("cluster count changed across rebuilds: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if len(first[i]) != len(second[i]) {
			t.Fatalf("cluster %d size changed across rebuilds: %d vs %d", i, len(first[i]), len(second[i]))
		}
		for id := range first[i] {
			if _, ok := second[i][id]; !ok {
				t.Fatalf("cluster %d membership changed across rebuilds", i)
			}
		}
	}
}

func snapshotMembers(idx *IVF) []map[string]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]map[string]struct{}, len(idx.clusterMembers))
	for i, m := range idx.clusterMembers {
		copyM := make(map[string]struct{}, len(m))
		for id := range m {
			copyM[id] = struct{}{}
		}
		out[i] = copyM
	}
	return out
}

func TestIVFDeleteRemovesFromAllStructures(t *testing.T) {
	idx := NewIVF(IVFParams{})
	vectors := seedTextVectors(5)
	for id, v := range vectors {
		if err := idx.Add(id, v, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Build(); err != nil {
		t.Fatal(err)
	}

	if !idx.Delete("t2") {
		t.Fatal("expected delete to report existing entry")
	}
	if idx.Delete("t2") {
		t.Fatal("expected second delete to report no entry")
	}

	for _, members := range idx.clusterMembers {
		if _, ok := members["t2"]; ok {
			t.Fatal("deleted id still present in cluster members")
		}
	}
}
