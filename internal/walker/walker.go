// Package walker expands file store targets into a flat list of files.
// Folders are traversed depth-first; only files are returned as leaves.
package walker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quillworks/driveanswer/internal/core/domain"
	"github.com/quillworks/driveanswer/internal/core/ports/driven"
	"github.com/quillworks/driveanswer/internal/logger"
)

// DefaultMaxDepth caps folder recursion. The remote hierarchy is a DAG by
// contract, so the cap only guards against an unexpected cycle.
const DefaultMaxDepth = 50

// DefaultFolderConcurrency bounds parallel listings of sibling folders.
const DefaultFolderConcurrency = 4

// Walker expands folders recursively over a FileStore.
type Walker struct {
	store       driven.FileStore
	maxDepth    int
	concurrency int
}

// Option configures a Walker.
type Option func(*Walker)

// WithMaxDepth overrides the recursion depth cap.
func WithMaxDepth(depth int) Option {
	return func(w *Walker) {
		if depth > 0 {
			w.maxDepth = depth
		}
	}
}

// WithFolderConcurrency overrides the sibling folder fan-out bound.
func WithFolderConcurrency(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// New creates a Walker over the given file store.
func New(store driven.FileStore, opts ...Option) *Walker {
	w := &Walker{
		store:       store,
		maxDepth:    DefaultMaxDepth,
		concurrency: DefaultFolderConcurrency,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Expand resolves each target ID to either a file or a folder and returns
// the flat list of contained files. Folders are expanded recursively and
// never returned themselves. Files must match the MIME filter to be
// included; within one folder the remote listing order is preserved.
func (w *Walker) Expand(ctx context.Context, targetIDs []string, mimeFilter []string) ([]domain.FileRef, error) {
	var files []domain.FileRef

	for _, id := range targetIDs {
		ref, err := w.store.GetFile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve target %s: %w", id, err)
		}

		if !ref.IsFolder {
			if matchesFilter(ref, mimeFilter) {
				files = append(files, ref)
			} else {
				logger.Debug("target %s (%s) filtered out by mime filter", ref.Name, ref.MIMEType)
			}
			continue
		}

		expanded, err := w.expandFolder(ctx, ref.ID, mimeFilter, 1)
		if err != nil {
			return nil, err
		}
		files = append(files, expanded...)
	}

	logger.Debug("expanded %d target(s) into %d file(s)", len(targetIDs), len(files))
	return files, nil
}

// expandFolder lists one folder and recurses into child folders. Sibling
// folders are listed concurrently; each branch stays sequential relative
// to its own subtree. Results keep the listing order: a child folder's
// files appear at the child's position in the listing.
func (w *Walker) expandFolder(ctx context.Context, folderID string, mimeFilter []string, depth int) ([]domain.FileRef, error) {
	if depth > w.maxDepth {
		return nil, fmt.Errorf("%w: folder %s at depth %d", domain.ErrTraversalLimit, folderID, depth)
	}

	children, err := w.store.ListChildren(ctx, folderID, driven.ListOptions{MIMETypes: mimeFilter})
	if err != nil {
		return nil, fmt.Errorf("list folder %s: %w", folderID, err)
	}

	// results[i] holds the expansion of children[i]: the child itself for
	// files, the recursive expansion for folders.
	results := make([][]domain.FileRef, len(children))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	var mu sync.Mutex

	for i, child := range children {
		if !child.IsFolder {
			if matchesFilter(child, mimeFilter) {
				results[i] = []domain.FileRef{child}
			}
			continue
		}

		g.Go(func() error {
			expanded, err := w.expandFolder(gctx, child.ID, mimeFilter, depth+1)
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = expanded
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var files []domain.FileRef
	for _, r := range results {
		files = append(files, r...)
	}
	return files, nil
}

// matchesFilter reports whether a file's MIME type passes the filter.
// An empty filter admits every file.
func matchesFilter(ref domain.FileRef, mimeFilter []string) bool {
	if len(mimeFilter) == 0 {
		return true
	}
	for _, mime := range mimeFilter {
		if ref.MIMEType == mime {
			return true
		}
	}
	return false
}
