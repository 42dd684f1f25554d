package driven

import "context"

// Extractor converts a raw byte stream of one document format into plain
// text. Implementations are selected by MIME type through a lookup table.
type Extractor interface {
	// MIMETypes returns the MIME types this extractor handles.
	MIMETypes() []string

	// Extract returns the plain text content of the document.
	// An empty document yields empty text, not an error.
	Extract(ctx context.Context, data []byte) (string, error)
}
