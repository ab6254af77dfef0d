package usecase

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

type fakeCrossEncoder struct {
	calls  int
	scores []float64
	err    error
}

func (f *fakeCrossEncoder) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	return make([]float64, len(texts)), nil
}

func rerankFixture(n int) []domain.Passage {
	out := make([]domain.Passage, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Passage{
			ID:   string(rune('a' + i)),
			Text: "passage " + string(rune('a'+i)),
		})
	}
	return out
}

func TestRerankEmptyInputSkipsBackend(t *testing.T) {
	enc := &fakeCrossEncoder{}
	r := NewCrossEncoderReranker(enc)

	got, err := r.Rerank(context.Background(), "q", nil, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	if enc.calls != 0 {
		t.Fatalf("empty input must not call the encoder, got %d calls", enc.calls)
	}
}

func TestRerankOrdersByScoreAndCuts(t *testing.T) {
	enc := &fakeCrossEncoder{scores: []float64{0.1, 0.9, 0.5, 0.7}}
	r := NewCrossEncoderReranker(enc)

	got, err := r.RerankWithScores(context.Background(), "q", rerankFixture(4), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].Passage.ID != "b" || got[1].Passage.ID != "d" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Score < got[1].Score {
		t.Fatalf("scores must be non-increasing: %v %v", got[0].Score, got[1].Score)
	}
	if enc.calls != 1 {
		t.Fatalf("all pairs must be scored in one call, got %d", enc.calls)
	}
}

func TestRerankTopKLargerThanInput(t *testing.T) {
	enc := &fakeCrossEncoder{scores: []float64{0.3, 0.2, 0.1}}
	r := NewCrossEncoderReranker(enc)

	got, err := r.Rerank(context.Background(), "q", rerankFixture(3), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected min(topK, len) = 3, got %d", len(got))
	}
}

func TestRerankEqualScoresKeepRetrievalOrder(t *testing.T) {
	enc := &fakeCrossEncoder{scores: []float64{0.5, 0.5, 0.5}}
	r := NewCrossEncoderReranker(enc)

	got, err := r.Rerank(context.Background(), "q", rerankFixture(3), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("ties must keep retrieval order, got %+v", got)
	}
}

func TestRerankSanitizesNonFiniteScores(t *testing.T) {
	enc := &fakeCrossEncoder{scores: []float64{math.NaN(), 0.1, math.Inf(-1)}}
	r := NewCrossEncoderReranker(enc)

	got, err := r.RerankWithScores(context.Background(), "q", rerankFixture(3), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Passage.ID != "b" {
		t.Fatalf("finite score must rank first, got %+v", got)
	}
	for _, s := range got {
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			t.Fatalf("non-finite score leaked: %+v", got)
		}
	}
	// Both sanitized scores are 0, so the original order holds.
	if got[1].Passage.ID != "a" || got[2].Passage.ID != "c" {
		t.Fatalf("sanitized ties must keep retrieval order, got %+v", got)
	}
}

func TestRerankPropagatesBackendError(t *testing.T) {
	wantErr := errors.New("scoring service down")
	r := NewCrossEncoderReranker(&fakeCrossEncoder{err: wantErr})

	_, err := r.Rerank(context.Background(), "q", rerankFixture(2), 2)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestRerankRejectsScoreCountMismatch(t *testing.T) {
	r := NewCrossEncoderReranker(&fakeCrossEncoder{scores: []float64{0.1}})

	_, err := r.Rerank(context.Background(), "q", rerankFixture(3), 3)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mismatched scores, got %v", err)
	}
}
