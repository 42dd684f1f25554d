package driven

import (
	"context"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

// AnswerStore persists completed question/answer pairs. The history is
// advisory: failures to record an answer never fail the request.
type AnswerStore interface {
	// Save records a completed answer.
	Save(ctx context.Context, rec domain.AnswerRecord) error

	// List returns the most recent answers, newest first.
	List(ctx context.Context, limit int) ([]domain.AnswerRecord, error)

	// Close releases resources.
	Close() error
}
