package drive

import (
	"fmt"
	"strings"

	"github.com/quillworks/driveanswer/internal/core/ports/driven"
)

// buildChildrenQuery assembles a Drive search query for the direct
// children of a folder. Folders always pass the MIME filter so callers
// can recurse into them.
func buildChildrenQuery(folderID string, opts driven.ListOptions) string {
	clauses := []string{
		fmt.Sprintf("'%s' in parents", escapeQueryValue(folderID)),
		"trashed = false",
	}

	if len(opts.MIMETypes) > 0 {
		mimeClauses := make([]string, 0, len(opts.MIMETypes)+1)
		for _, mt := range opts.MIMETypes {
			mimeClauses = append(mimeClauses, fmt.Sprintf("mimeType = '%s'", escapeQueryValue(mt)))
		}
		mimeClauses = append(mimeClauses, "mimeType = 'application/vnd.google-apps.folder'")
		clauses = append(clauses, "("+strings.Join(mimeClauses, " or ")+")")
	}

	if opts.NameContains != "" {
		clauses = append(clauses, fmt.Sprintf("name contains '%s'", escapeQueryValue(opts.NameContains)))
	}

	return strings.Join(clauses, " and ")
}

// escapeQueryValue escapes single quotes and backslashes for the Drive
// query language.
func escapeQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
