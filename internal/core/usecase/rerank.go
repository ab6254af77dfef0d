package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
)

// CrossEncoderReranker orders candidate passages by cross-encoder
// relevance to the question. All candidates are scored in one backend
// call.
type CrossEncoderReranker struct {
	encoder ports.CrossEncoder
}

func NewCrossEncoderReranker(encoder ports.CrossEncoder) *CrossEncoderReranker {
	return &CrossEncoderReranker{encoder: encoder}
}

// Rerank returns the min(topK, len(passages)) most relevant passages.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, question string, passages []domain.Passage, topK int) ([]domain.Passage, error) {
	scored, err := r.RerankWithScores(ctx, question, passages, topK)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Passage, len(scored))
	for i, s := range scored {
		out[i] = s.Passage
	}
	return out, nil
}

// RerankWithScores returns the reranked passages with their scores in
// descending order. Equal scores keep the retrieval order. Empty input
// returns empty without touching the backend.
func (r *CrossEncoderReranker) RerankWithScores(ctx context.Context, question string, passages []domain.Passage, topK int) ([]domain.ScoredPassage, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	scores, err := r.encoder.Score(ctx, question, texts)
	if err != nil {
		return nil, fmt.Errorf("cross-encoder score: %w", err)
	}
	if len(scores) != len(passages) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "cross-encoder score",
			fmt.Errorf("scores/passages mismatch: %d/%d", len(scores), len(passages)))
	}

	scored := make([]domain.ScoredPassage, len(passages))
	for i, p := range passages {
		scored[i] = domain.ScoredPassage{Passage: p, Score: sanitizeScore(scores[i])}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK < 0 {
		topK = 0
	}
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// sanitizeScore keeps NaN/Inf backend values from poisoning the sort.
func sanitizeScore(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
