// Package plaintext extracts text from UTF-8 encoded documents.
package plaintext

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// MIMETypes returns the MIME types this extractor handles.
func (e *Extractor) MIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/markdown",
	}
}

// Extract decodes the bytes as UTF-8. Invalid byte sequences fail with
// ErrDecode rather than being silently replaced.
func (e *Extractor) Extract(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", domain.ErrDecode)
	}
	return string(data), nil
}
