// Package memory provides an in-process vector index. Collections live
// in process memory and vanish with it, which matches the request-scoped
// lifetime the pipeline gives them. It is also the index used in tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a mutex-guarded map of named collections.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimensions int
	items      []domain.EmbeddedChunk
}

// New creates an empty in-memory vector index.
func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

// CreateCollection prepares an empty collection for the given dimension.
// Re-creating an existing collection with the same dimension is a no-op.
func (x *Index) CreateCollection(_ context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if existing, ok := x.collections[name]; ok {
		if existing.dimensions != dimensions {
			return fmt.Errorf("%w: collection %s has dimension %d, requested %d",
				domain.ErrInvalidInput, name, existing.dimensions, dimensions)
		}
		return nil
	}

	x.collections[name] = &collection{dimensions: dimensions}
	return nil
}

// DropCollection removes a collection. Absent collections are ignored.
func (x *Index) DropCollection(_ context.Context, name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.collections, name)
	return nil
}

// Upsert inserts embedded chunks. Every vector must match the collection
// dimension.
func (x *Index) Upsert(_ context.Context, name string, chunks []domain.EmbeddedChunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	col, ok := x.collections[name]
	if !ok {
		return fmt.Errorf("%w: collection %s", domain.ErrNotFound, name)
	}

	for _, c := range chunks {
		if len(c.Embedding) != col.dimensions {
			return fmt.Errorf("%w: vector dimension %d, collection expects %d",
				domain.ErrInvalidInput, len(c.Embedding), col.dimensions)
		}
	}
	col.items = append(col.items, chunks...)
	return nil
}

// Query returns the k nearest chunks by cosine similarity.
func (x *Index) Query(_ context.Context, name string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	col, ok := x.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, name)
	}
	if len(vector) != col.dimensions {
		return nil, fmt.Errorf("%w: query dimension %d, collection expects %d",
			domain.ErrInvalidInput, len(vector), col.dimensions)
	}

	scored := make([]domain.ScoredChunk, 0, len(col.items))
	for _, item := range col.items {
		scored = append(scored, domain.ScoredChunk{
			Chunk: item.Chunk,
			Score: cosine(vector, item.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// Close releases resources.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.collections = make(map[string]*collection)
	return nil
}

// cosine computes cosine similarity between two equal-length vectors.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
