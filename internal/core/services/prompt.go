package services

import (
	"fmt"
	"strings"

	"github.com/quillworks/driveanswer/internal/core/domain"
)

// promptTemplate instructs the model to answer strictly from the
// retrieved context and to say so when the context is insufficient.
const promptTemplate = `You are an expert assistant. Use the provided context to answer the question accurately and concisely.

Context:
%s

Question: %s

Instructions:
- Answer only from the context above.
- If the context does not contain the answer, reply "I don't have enough information to answer this question" instead of guessing.
- Quote the document when it supports the answer.

Answer:`

// BuildPrompt assembles the generation prompt from the question and the
// retrieved chunks. Each chunk is labelled with its source file so the
// model can attribute quotes.
func BuildPrompt(question string, cited []domain.Chunk) string {
	var ctx strings.Builder
	for i, c := range cited {
		if i > 0 {
			ctx.WriteString("\n\n")
		}
		ctx.WriteString(fmt.Sprintf("[%s]\n%s", c.SourceName, c.Text))
	}
	return fmt.Sprintf(promptTemplate, ctx.String(), question)
}
