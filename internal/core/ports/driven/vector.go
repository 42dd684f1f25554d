package driven

import (
	"context"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

// VectorIndex stores embedded chunks in named collections and answers
// nearest-neighbour queries by cosine similarity. A collection holds the
// vectors of one request; all vectors in it share one dimension.
type VectorIndex interface {
	// CreateCollection prepares an empty collection for vectors of the
	// given dimension. Creating an existing collection is not an error.
	CreateCollection(ctx context.Context, name string, dimensions int) error

	// DropCollection removes a collection and all its vectors.
	// Dropping an absent collection is not an error.
	DropCollection(ctx context.Context, name string) error

	// Upsert inserts embedded chunks into a collection.
	Upsert(ctx context.Context, collection string, chunks []domain.EmbeddedChunk) error

	// Query returns the k chunks nearest to the query vector, ordered by
	// descending similarity.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.ScoredChunk, error)

	// Close releases resources.
	Close() error
}
