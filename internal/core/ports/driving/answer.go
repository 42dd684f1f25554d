// Package driving provides interfaces for inbound adapters
// (primary ports). The HTTP boundary and the CLI drive the
// application through these interfaces.
package driving

import (
	"context"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

// AnswerService answers a natural-language question from a set of remote
// documents. A failed request returns a *domain.StageError naming the
// pipeline stage that failed; no partial answer is returned on failure.
type AnswerService interface {
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error)
}
