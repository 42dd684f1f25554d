// Package chunker splits extracted text into overlapping fixed-size
// windows suitable for embedding and retrieval.
package chunker

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

// DefaultChunkSize is the default window length in characters.
const DefaultChunkSize = 1000

// DefaultOverlap is the default number of characters shared between
// consecutive windows.
const DefaultOverlap = 200

// Splitter produces overlapping chunks from document text.
type Splitter struct {
	chunkSize int
	overlap   int
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithChunkSize sets the window length in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) { s.chunkSize = size }
}

// WithOverlap sets the overlap between consecutive windows in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) { s.overlap = overlap }
}

// New creates a Splitter. The overlap must be smaller than the chunk size
// and neither may be negative; invalid parameters fail with ErrChunkConfig.
func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", domain.ErrChunkConfig, s.chunkSize)
	}
	if s.overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %d must not be negative", domain.ErrChunkConfig, s.overlap)
	}
	if s.overlap >= s.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			domain.ErrChunkConfig, s.overlap, s.chunkSize)
	}
	return s, nil
}

// ChunkSize returns the configured window length.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured window overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts the document text into an ordered chunk sequence. Each window
// starts chunkSize-overlap characters after the previous one, so adjacent
// chunks share exactly overlap characters; the final chunk may be shorter.
// Empty text yields an empty sequence. The input is never mutated.
func (s *Splitter) Split(source domain.FileRef, text string) []domain.Chunk {
	if text == "" {
		return nil
	}

	// Work in runes so multi-byte characters are never cut in half.
	runes := []rune(text)
	total := len(runes)
	step := s.chunkSize - s.overlap

	chunks := make([]domain.Chunk, 0, total/step+1)
	for start := 0; start < total; start += step {
		end := start + s.chunkSize
		if end > total {
			end = total
		}

		overlap := 0
		if start > 0 {
			overlap = s.overlap
		}

		chunks = append(chunks, domain.Chunk{
			ID:                  uuid.New().String(),
			SourceID:            source.ID,
			SourceName:          source.Name,
			Text:                string(runes[start:end]),
			SequenceIndex:       len(chunks),
			OverlapWithPrevious: overlap,
		})

		// The last window reaches the end of the text; a further window
		// would only repeat the tail of this one.
		if end == total {
			break
		}
	}

	return chunks
}
