// Package embedding defines the text-to-vector provider contract consumed
// by the index registry and orchestration layer. Batch fan-out uses
// golang.org/x/sync/errgroup to embed concurrently while propagating the
// first error.
package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// InputType distinguishes how a text is being embedded: the registry's
// search path uses SearchQuery, and chunk ingestion uses SearchDocument.
type InputType string

const (
	SearchDocument InputType = "search_document"
	SearchQuery    InputType = "search_query"
)

// Provider converts text to vectors. Implementations are treated as a black
// box; failures are surfaced to callers as embedding errors by whoever holds
// the Provider (the index registry, orchestration), not by Provider itself.
type Provider interface {
	// Embed converts a single text into a vector of Dim() length.
	Embed(ctx context.Context, text string, inputType InputType) ([]float32, error)
	// EmbedBatch converts multiple texts concurrently, preserving order.
	EmbedBatch(ctx context.Context, texts []string, inputType InputType) ([][]float32, error)
	// Dim returns the dimension of vectors this provider produces.
	Dim() int
}

// EmbedFunc computes a single embedding; BaseProvider wraps one to get
// concurrent EmbedBatch support for free.
type EmbedFunc func(ctx context.Context, text string, inputType InputType) ([]float32, error)

// BaseProvider provides EmbedBatch via concurrent fan-out over an
// EmbedFunc, one goroutine per text with no concurrency limit, and a fixed
// Dim.
type BaseProvider struct {
	Fn        EmbedFunc
	Dimension int
}

// NewBaseProvider wraps fn as a Provider reporting dimension dim.
func NewBaseProvider(dim int, fn EmbedFunc) *BaseProvider {
	return &BaseProvider{Fn: fn, Dimension: dim}
}

func (b *BaseProvider) Embed(ctx context.Context, text string, inputType InputType) ([]float32, error) {
	return b.Fn(ctx, text, inputType)
}

func (b *BaseProvider) EmbedBatch(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := b.Fn(gctx, text, inputType)
			if err != nil {
				return err
			}
			results[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *BaseProvider) Dim() int {
	return b.Dimension
}
