package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
)

const (
	defaultRetrievalK = 20
	defaultFinalK     = 4
	snippetLimit      = 200
)

// AskUseCase orchestrates the answer pipeline: resilient retrieval,
// cross-encoder reranking and answer synthesis with citations.
type AskUseCase struct {
	retriever  ports.Retriever
	reranker   *CrossEncoderReranker
	generator  ports.AnswerGenerator
	retrievalK int
	finalK     int
}

func NewAskUseCase(
	retriever ports.Retriever,
	reranker *CrossEncoderReranker,
	generator ports.AnswerGenerator,
	retrievalK int,
	finalK int,
) *AskUseCase {
	if retrievalK <= 0 {
		retrievalK = defaultRetrievalK
	}
	if finalK <= 0 {
		finalK = defaultFinalK
	}
	return &AskUseCase{
		retriever:  retriever,
		reranker:   reranker,
		generator:  generator,
		retrievalK: retrievalK,
		finalK:     finalK,
	}
}

// Ask answers the question over the knowledge base. Retrieval
// exhaustion degrades to an Answer with ModeError instead of failing:
// the degraded shape is part of the contract.
func (uc *AskUseCase) Ask(ctx context.Context, question string, filter domain.SearchFilter) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("empty question"))
	}

	res := uc.retriever.Retrieve(ctx, question, uc.retrievalK, filter)
	if res.Mode == domain.ModeError {
		return &domain.Answer{
			Text:     fmt.Sprintf("Unable to retrieve documents from the knowledge base: %v", res.Err),
			Sources:  []domain.Citation{},
			CacheHit: false,
			Mode:     domain.ModeError,
		}, nil
	}

	cacheHit := res.Mode == domain.ModeCache
	if len(res.Passages) == 0 {
		return &domain.Answer{
			Text:     "No relevant documents found in the knowledge base for this question.",
			Sources:  []domain.Citation{},
			CacheHit: cacheHit,
			Mode:     res.Mode,
		}, nil
	}

	// Cached entries hold pre-rerank passages, so reranking runs for
	// cache hits too.
	ranked, err := uc.reranker.RerankWithScores(ctx, question, res.Passages, uc.finalK)
	if err != nil {
		return nil, fmt.Errorf("rerank passages: %w", err)
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, ranked)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:     answerText,
		Sources:  citations(ranked),
		CacheHit: cacheHit,
		Mode:     res.Mode,
	}, nil
}

func (uc *AskUseCase) CacheStats() domain.CacheStats {
	return uc.retriever.CacheStats()
}

func (uc *AskUseCase) ClearCache() {
	uc.retriever.ClearCache()
}

func citations(ranked []domain.ScoredPassage) []domain.Citation {
	out := make([]domain.Citation, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, domain.Citation{
			Source:  s.Passage.Source,
			Page:    s.Passage.Page,
			Section: s.Passage.Section,
			Snippet: snippet(s.Passage.Text, snippetLimit),
		})
	}
	return out
}

// snippet truncates rune-wise so citations stay valid UTF-8.
func snippet(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}
