package domain

import "time"

// MIME types with special handling in the pipeline.
const (
	MIMETypeFolder = "application/vnd.google-apps.folder"
	MIMETypePDF    = "application/pdf"
	MIMETypeDocx   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETypePptx   = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMETypeText   = "text/plain"
	MIMETypeCSV    = "text/csv"
)

// FileRef identifies a single item in the remote file store.
// It is created when listing remote folders and is immutable afterwards.
type FileRef struct {
	// ID is the store-assigned opaque identifier.
	ID string

	// Name is the human-readable file name.
	Name string

	// MIMEType is the declared content type of the item.
	MIMEType string

	// ModifiedTime is when the remote item was last changed.
	ModifiedTime time.Time

	// IsFolder reports whether the item is a container rather than a file.
	IsFolder bool

	// ParentID is the identifier of the containing folder, if known.
	ParentID string
}

// ExtractedDocument pairs a file reference with its extracted plain text.
// An extraction that yields no text is treated as failed by the pipeline.
type ExtractedDocument struct {
	Source FileRef
	Text   string
}

// Chunk is a bounded text window derived from one extracted document.
// Chunks form an ordered sequence preserving document order; consecutive
// chunks share OverlapWithPrevious characters with their predecessor.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// SourceID is the FileRef.ID of the originating document.
	SourceID string

	// SourceName is the originating file name, carried for citations.
	SourceName string

	// Text is the chunk content.
	Text string

	// SequenceIndex is the ordinal position within the source document.
	SequenceIndex int

	// OverlapWithPrevious is the number of characters shared verbatim with
	// the preceding chunk. Zero for the first chunk of a document.
	OverlapWithPrevious int
}

// EmbeddedChunk is a chunk together with its embedding vector.
// Its lifetime is bound to the index collection it is inserted into.
type EmbeddedChunk struct {
	Chunk     Chunk
	Embedding []float32
}

// ScoredChunk is a retrieval result: a chunk and its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// QueryRequest is a single question against a set of files and/or folders.
type QueryRequest struct {
	// Question is the natural-language question to answer.
	Question string

	// TargetIDs are the file store identifiers of files or folders the
	// answer should be grounded in. Folders are expanded recursively.
	TargetIDs []string

	// TopK overrides the configured number of chunks to retrieve when > 0.
	TopK int
}

// Answer is the result of a completed pipeline run.
type Answer struct {
	// Text is the generated answer.
	Text string

	// Cited are the retrieved chunks the answer was grounded in, ordered
	// by descending similarity.
	Cited []Chunk

	// Warnings lists files that were skipped under the lenient policy.
	Warnings []string
}

// AnswerRecord is a persisted question/answer pair.
type AnswerRecord struct {
	ID        string
	Question  string
	Answer    string
	Sources   []string
	CreatedAt time.Time
}
