// Package kmeans implements cosine-distance k-means clustering used by the
// IVF index's build step. Centroids are initialized by deterministic
// evenly-spaced sampling rather than random seeding, so repeated builds
// over the same input produce identical clusters.
package kmeans

import (
	"fmt"
	"math"

	"github.com/gauravreddy08/vector-db/pkg/simfn"
)

// Result holds the centroids and the parallel per-vector cluster labels
// produced by Cluster.
type Result struct {
	Centroids [][]float32
	Labels    []int
}

// Cluster runs cosine k-means over vectors, requesting up to k clusters.
//
// Empty input yields an empty Result. k is clamped to len(vectors) when it
// exceeds it. k <= 0 is an error. Centroids are initialised by deterministic
// evenly-spaced sampling of the input (not random), so repeated runs over
// the same input are identical — rebuilding an IVF index without changing
// its vectors reproduces the same cluster assignment.
func Cluster(vectors [][]float32, k, maxIters int, tol float64) (Result, error) {
	if len(vectors) == 0 {
		return Result{}, nil
	}
	if k <= 0 {
		return Result{}, fmt.Errorf("kmeans: k must be positive, got %d", k)
	}

	n := len(vectors)
	kEff := k
	if kEff > n {
		kEff = n
	}

	centroids := initEvenlySpaced(vectors, kEff)
	labels := make([]int, n)

	for iter := 0; iter < maxIters; iter++ {
		for i, v := range vectors {
			labels[i] = nearestCentroid(v, centroids)
		}

		newCentroids, maxShift := recomputeCentroids(vectors, labels, centroids)
		centroids = newCentroids

		if maxShift <= tol {
			break
		}
	}

	// Final assignment pass so labels reflect the last centroid update.
	for i, v := range vectors {
		labels[i] = nearestCentroid(v, centroids)
	}

	return Result{Centroids: centroids, Labels: labels}, nil
}

// initEvenlySpaced deterministically samples kEff distinct vectors spread
// evenly across the input order.
func initEvenlySpaced(vectors [][]float32, kEff int) [][]float32 {
	centroids := make([][]float32, kEff)
	n := len(vectors)
	for i := 0; i < kEff; i++ {
		idx := (i * n) / kEff
		centroids[i] = cloneVector(vectors[idx])
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestSim := math.Inf(-1)
	for i, c := range centroids {
		sim := simfn.Cosine(v, c)
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	return best
}

// recomputeCentroids sets each centroid to the arithmetic mean of its
// assigned vectors; empty clusters keep their previous centroid. Returns the
// new centroids and the maximum Euclidean shift across all centroids.
func recomputeCentroids(vectors [][]float32, labels []int, prev [][]float32) ([][]float32, float64) {
	dim := len(prev[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for i, v := range vectors {
		label := labels[i]
		counts[label]++
		for d, val := range v {
			sums[label][d] += float64(val)
		}
	}

	next := make([][]float32, len(prev))
	maxShift := 0.0
	for i := range prev {
		if counts[i] == 0 {
			next[i] = prev[i]
			continue
		}

		mean := make([]float32, dim)
		var shift float64
		for d := 0; d < dim; d++ {
			mean[d] = float32(sums[i][d] / float64(counts[i]))
			diff := float64(mean[d] - prev[i][d])
			shift += diff * diff
		}
		shift = math.Sqrt(shift)
		if shift > maxShift {
			maxShift = shift
		}
		next[i] = mean
	}

	return next, maxShift
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
