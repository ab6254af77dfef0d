package ollama

import (
	"fmt"
	"strings"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

func buildAnswerPrompt(question string, passages []domain.ScoredPassage) string {
	var contextBuilder strings.Builder
	for idx, sp := range passages {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] source=%s page=%d score=%.3f\n%s\n\n",
			idx+1,
			sp.Passage.Source,
			sp.Passage.Page,
			sp.Score,
			sp.Passage.Text,
		))
	}

	return fmt.Sprintf(`Answer user question only from context below.
Cite supporting passages by their bracketed numbers.
If context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
