// Package simfn holds the similarity kernel shared by every index kind.
package simfn

import "math"

// Cosine computes cos(a, b) = dot(a,b) / (‖a‖·‖b‖).
// If either vector has zero norm the result is defined as 0.
// Range is [-1, 1]; higher is better.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		normA += fa * fa
		normB += fb * fb
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
