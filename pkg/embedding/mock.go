package embedding

import (
	"context"
	"hash/fnv"
)

// NewDeterministicProvider returns a Provider that hashes each text into a
// fixed-dimension vector, deterministically and without network calls. It
// exists to drive tests across packages that depend on embedding.Provider
// (the registry, orchestration service) without a real embedding backend.
func NewDeterministicProvider(dim int) Provider {
	return NewBaseProvider(dim, func(_ context.Context, text string, _ InputType) ([]float32, error) {
		return hashVector(text, dim), nil
	})
}

func hashVector(text string, dim int) []float32 {
	out := make([]float32, dim)
	h := fnv.New64a()
	seed := []byte(text)
	for i := 0; i < dim; i++ {
		h.Reset()
		h.Write(seed)
		h.Write([]byte{byte(i)})
		sum := h.Sum64()
		out[i] = float32(sum%10000) / 10000
	}
	return out
}
