// Package extractors converts raw document bytes into plain text.
// One extractor exists per supported format; the registry dispatches on
// MIME type.
package extractors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
	"github.com/quillworks/driveanswer/internal/extractors/docx"
	"github.com/quillworks/driveanswer/internal/extractors/pdf"
	"github.com/quillworks/driveanswer/internal/extractors/plaintext"
	"github.com/quillworks/driveanswer/internal/extractors/pptx"
)

// Registry maps MIME types to extractors.
type Registry struct {
	byMIME map[string]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMIME: make(map[string]driven.Extractor)}
}

// Defaults returns a registry with all built-in extractors registered:
// plain text, PDF, Word documents and presentations.
func Defaults() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(pdf.New())
	r.Register(docx.New())
	r.Register(pptx.New())
	return r
}

// Register adds an extractor for all MIME types it declares.
// A later registration for the same MIME type wins.
func (r *Registry) Register(e driven.Extractor) {
	for _, mime := range e.MIMETypes() {
		r.byMIME[strings.ToLower(mime)] = e
	}
}

// ForMIME returns the extractor for a MIME type, or ErrUnsupportedType
// when no extractor handles it.
func (r *Registry) ForMIME(mimeType string) (driven.Extractor, error) {
	e, ok := r.byMIME[strings.ToLower(mimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, mimeType)
	}
	return e, nil
}

// Supported returns the sorted list of registered MIME types.
func (r *Registry) Supported() []string {
	types := make([]string, 0, len(r.byMIME))
	for mime := range r.byMIME {
		types = append(types, mime)
	}
	sort.Strings(types)
	return types
}
