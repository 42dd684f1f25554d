// Package drive implements the file store port against the Google Drive
// API. Google Workspace documents are exported to plain formats on
// download; regular files are fetched as-is.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.FileStore = (*Store)(nil)

// Google Workspace MIME types that require export.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
)

// Export formats for Google Workspace files.
const (
	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

// MaxDownloadSize is the maximum size for downloaded content (32MB).
const MaxDownloadSize = 32 * 1024 * 1024

// Default configuration values.
const (
	DefaultQPS       = 8
	DefaultPageSize  = 100
	fileFields       = "id, name, mimeType, modifiedTime, parents"
	listFieldsFormat = "nextPageToken, files(" + fileFields + ")"
)

// Config holds configuration for the Drive file store.
type Config struct {
	// TokenSource supplies OAuth2 tokens (required).
	TokenSource oauth2.TokenSource

	// QPS caps outgoing API calls per second (default: 8).
	QPS int

	// PageSize is the listing page size (default: 100, max: 1000).
	PageSize int
}

// Store is a Google Drive file store.
type Store struct {
	svc      *gdrive.Service
	limiter  *rate.Limiter
	pageSize int64
}

// NewStore creates a Drive store using the provided token source.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("drive: token source is required")
	}
	if cfg.QPS <= 0 {
		cfg.QPS = DefaultQPS
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	svc, err := gdrive.NewService(ctx, option.WithTokenSource(cfg.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}

	return &Store{
		svc:      svc,
		limiter:  rate.NewLimiter(rate.Limit(cfg.QPS), cfg.QPS),
		pageSize: int64(cfg.PageSize),
	}, nil
}

// GetFile resolves a single item by ID.
func (s *Store) GetFile(ctx context.Context, id string) (domain.FileRef, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return domain.FileRef{}, err
	}

	file, err := s.svc.Files.Get(id).
		Fields(googleapi.Field(fileFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return domain.FileRef{}, wrapErr("get file "+id, err)
	}
	return toFileRef(file), nil
}

// ListChildren returns the direct children of a folder, most recently
// modified first.
func (s *Store) ListChildren(ctx context.Context, folderID string, opts driven.ListOptions) ([]domain.FileRef, error) {
	query := buildChildrenQuery(folderID, opts)

	var refs []domain.FileRef
	pageToken := ""
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := s.svc.Files.List().
			Q(query).
			OrderBy("modifiedTime desc").
			PageSize(s.pageSize).
			Fields(googleapi.Field(listFieldsFormat)).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, wrapErr("list children of "+folderID, err)
		}

		for _, file := range page.Files {
			refs = append(refs, toFileRef(file))
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return refs, nil
}

// DownloadBytes fetches the full content of a file. Workspace documents
// are exported: Docs and Slides to text/plain, Sheets to text/csv.
func (s *Store) DownloadBytes(ctx context.Context, fileID string) ([]byte, string, error) {
	ref, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	if ref.IsFolder {
		return nil, "", fmt.Errorf("%w: %s is a folder", domain.ErrInvalidInput, fileID)
	}

	if exportMime, ok := exportMimeFor(ref.MIMEType); ok {
		data, err := s.export(ctx, fileID, exportMime)
		if err != nil {
			return nil, "", err
		}
		return data, exportMime, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	resp, err := s.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, "", wrapErr("download file "+fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize))
	if err != nil {
		return nil, "", fmt.Errorf("read file content: %w", err)
	}
	return data, ref.MIMEType, nil
}

// export converts a Google Workspace file to the given format.
func (s *Store) export(ctx context.Context, fileID, exportMime string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.svc.Files.Export(fileID, exportMime).Context(ctx).Download()
	if err != nil {
		return nil, wrapErr("export file "+fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return data, nil
}

// exportMimeFor maps a Workspace MIME type to its export format.
func exportMimeFor(mimeType string) (string, bool) {
	switch mimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSlides:
		return ExportMimeText, true
	case MimeTypeGoogleSheet:
		return ExportMimeCSV, true
	}
	return "", false
}

// toFileRef converts a Drive file to the domain representation.
func toFileRef(file *gdrive.File) domain.FileRef {
	ref := domain.FileRef{
		ID:       file.Id,
		Name:     file.Name,
		MIMEType: file.MimeType,
		IsFolder: file.MimeType == domain.MIMETypeFolder,
	}
	if ts, err := time.Parse(time.RFC3339, file.ModifiedTime); err == nil {
		ref.ModifiedTime = ts
	}
	if len(file.Parents) > 0 {
		ref.ParentID = file.Parents[0]
	}
	return ref
}

// wrapErr maps Drive API failures to domain errors. Rate limits and
// server errors are retryable, permission and auth failures are not.
func wrapErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: drive %s", domain.ErrNotFound, op)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError:
			return domain.NewRemoteError("drive "+op, true, err)
		default:
			return domain.NewRemoteError("drive "+op, false, err)
		}
	}
	// Transport-level failures are worth retrying.
	return domain.NewRemoteError("drive "+op, true, err)
}
