package driven

import (
	"context"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

// ListOptions narrows a folder listing.
type ListOptions struct {
	// MIMETypes limits results to the given types. Folders are always
	// included so the walker can recurse. Empty means no type filter.
	MIMETypes []string

	// NameContains filters items whose name contains the given substring.
	NameContains string
}

// FileStore is the remote file store collaborator. Authentication and
// token refresh happen entirely inside the implementation; the pipeline
// only sees opaque identifiers and bytes.
type FileStore interface {
	// GetFile resolves a single item by ID.
	GetFile(ctx context.Context, id string) (domain.FileRef, error)

	// ListChildren returns the direct children of a folder, most recently
	// modified first (the remote listing order).
	ListChildren(ctx context.Context, folderID string, opts ListOptions) ([]domain.FileRef, error)

	// DownloadBytes fetches the full content of a file.
	// The returned MIME type may differ from the listed one when the store
	// converts the file on export (e.g. a native document exported as text).
	DownloadBytes(ctx context.Context, fileID string) (data []byte, mimeType string, err error)
}
